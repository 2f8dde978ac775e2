package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"postcast/internal/app"
	"postcast/internal/config"
	"postcast/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "postcast",
	Short:        "Serve blog posts with generated audio narration",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(logger.NewContextHandler(handler)))
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate <post-id>",
	Short: "Generate the narration for one post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			res, err := a.Narration.Generate(ctx, args[0])
			if err != nil {
				return err
			}
			if res.Existed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: audio already exists\n", res.PostID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: generated %d bytes from %d chunks\n", res.PostID, res.Bytes, res.Chunks)
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge <post-id>",
	Short: "Delete the stored narration for one post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if err := a.Narration.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: deleted\n", args[0])
			return nil
		})
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List posts and whether they are narrated",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			posts, err := a.Posts.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tAUDIO\tTITLE")
			for _, p := range posts {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.ID, p.Date, a.Narration.Exists(ctx, p.ID), p.Title)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, generateCmd, purgeCmd, postsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	return run(cmd.Context(), cfg)
}

// run boots the dependencies and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("failed to bootstrap dependencies", "error", err)
		return err
	}
	defer deps.Close()

	a, err := app.New(cfg, deps)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(cfg, deps)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}

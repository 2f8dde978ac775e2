package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrFileNotFound = errors.New("file not found in repository")

// Client reads post sources from a GitHub repository.
type Client struct {
	owner  string
	repo   string
	branch string
	token  string
	apiURL string
	rawURL string
	client *http.Client
}

func NewClient(owner, repo, branch, token string) *Client {
	return &Client{
		owner:  owner,
		repo:   repo,
		branch: branch,
		token:  token,
		apiURL: "https://api.github.com",
		rawURL: "https://raw.githubusercontent.com",
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) SetBaseURLs(apiURL, rawURL string) {
	if apiURL != "" {
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
	if rawURL != "" {
		c.rawURL = strings.TrimRight(rawURL, "/")
	}
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// FetchFile returns the raw contents of path on the configured branch.
func (c *Client) FetchFile(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawURL, c.owner, c.repo, c.branch, path)
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github raw error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	// raw.githubusercontent.com has been seen answering 200 with this body.
	if strings.TrimSpace(string(body)) == "404: Not Found" {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return body, nil
}

// ListFiles returns every path in the branch tree ending in suffix.
func (c *Client) ListFiles(ctx context.Context, suffix string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", c.apiURL, c.owner, c.repo, c.branch)
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api error: %d", resp.StatusCode)
	}

	var result struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(result.Tree))
	for _, e := range result.Tree {
		if e.Type == "tree" {
			continue
		}
		if strings.HasSuffix(e.Path, suffix) {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

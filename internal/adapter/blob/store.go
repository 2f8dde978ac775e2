package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	ErrNotConfigured = errors.New("audio storage not configured")
	ErrNotFound      = errors.New("audio not found")
)

const (
	ContentType  = "audio/mpeg"
	CacheControl = "public, max-age=31536000, immutable"
	keyPrefix    = "audio/"
	keySuffix    = ".mp3"
	presignTTL   = time.Hour
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// PublicBaseURL, when set, is used to build direct links instead of presigning.
	PublicBaseURL string
}

// Store keeps one MP3 narration per post in an S3 compatible bucket.
type Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	publicBaseURL string
}

// Object is an open artifact. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// New builds a store. An empty bucket yields an unconfigured store whose reads
// report absence and whose writes fail with ErrNotConfigured.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return &Store{}, nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and R2 reject the default flexible checksums on some versions.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func Key(id string) string {
	return keyPrefix + id + keySuffix
}

func (s *Store) Configured() bool {
	return s.client != nil && s.bucket != ""
}

// Exists reports whether an artifact is stored for id. Any failure reads as absent.
func (s *Store) Exists(ctx context.Context, id string) bool {
	if !s.Configured() {
		return false
	}
	_, err := s.head(ctx, id)
	if err != nil {
		if !isNotFound(err) {
			slog.WarnContext(ctx, "audio existence check failed", "post_id", id, "error", err)
		}
		return false
	}
	return true
}

func (s *Store) Save(ctx context.Context, id string, data []byte) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(Key(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
		CacheControl:  aws.String(CacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload audio for %s: %w", id, err)
	}
	return nil
}

// URL returns a locator clients can stream from directly.
func (s *Store) URL(ctx context.Context, id string) (string, bool) {
	if !s.Exists(ctx, id) {
		return "", false
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + Key(id), true
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(id)),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		slog.WarnContext(ctx, "failed to presign audio url", "post_id", id, "error", err)
		return "", false
	}
	return req.URL, true
}

func (s *Store) Open(ctx context.Context, id string) (*Object, error) {
	if !s.Configured() {
		return nil, ErrNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch audio for %s: %w", id, err)
	}

	ct := aws.ToString(out.ContentType)
	if ct == "" {
		ct = ContentType
	}
	return &Object{Body: out.Body, Size: aws.ToInt64(out.ContentLength), ContentType: ct}, nil
}

// Stat returns the stored size in bytes.
func (s *Store) Stat(ctx context.Context, id string) (int64, error) {
	if !s.Configured() {
		return 0, ErrNotFound
	}
	out, err := s.head(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return 0, fmt.Errorf("failed to stat audio for %s: %w", id, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Delete removes the artifact. Missing objects and failures are only logged.
func (s *Store) Delete(ctx context.Context, id string) {
	if !s.Configured() {
		return
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(id)),
	})
	if err != nil && !isNotFound(err) {
		slog.WarnContext(ctx, "failed to delete audio", "post_id", id, "error", err)
	}
}

// Count returns how many narrations are stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	if !s.Configured() {
		return 0, nil
	}

	n := 0
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list audio: %w", err)
		}
		for _, obj := range page.Contents {
			if strings.HasSuffix(aws.ToString(obj.Key), keySuffix) {
				n++
			}
		}
	}
	return n, nil
}

func (s *Store) head(ctx context.Context, id string) (*s3.HeadObjectOutput, error) {
	return s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(id)),
	})
}

func isNotFound(err error) bool {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}

	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

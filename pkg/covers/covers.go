package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Sentinel errors for cover storage.
var (
	// ErrInvalidConfig is returned when required configuration is missing.
	ErrInvalidConfig = errors.New("covers: invalid configuration")

	// ErrNotFound is returned when a cover does not exist in the bucket.
	ErrNotFound = errors.New("covers: cover not found")
)

// DefaultURLExpiry is the presigned URL lifetime.
const DefaultURLExpiry = 15 * time.Minute

// coverFile is Calibre's fixed cover filename inside each book directory.
const coverFile = "cover.jpg"

// Config holds S3-compatible storage configuration for book covers.
// The bucket mirrors the library's directory layout: one object per
// book at {prefix}/{book-path}/cover.jpg.
type Config struct {
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string // optional, for MinIO or other S3-compatible services
	Region    string
	Prefix    string // optional key prefix, e.g. "covers"
	PathStyle bool   // required for MinIO
}

// Enabled reports whether cover storage is configured at all.
// An empty bucket disables the feature rather than erroring.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}

// Storage serves book cover images from S3-compatible object storage.
type Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	cfg       Config
}

// New creates a cover storage client.
func New(cfg Config) (*Storage, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	client := s3.New(s3.Options{}, opts...)

	return &Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		cfg:       cfg,
	}, nil
}

// key builds the object key for a book's cover from the book's library
// path (the books.path column in metadata.db).
func (s *Storage) key(bookPath string) string {
	return path.Join(s.cfg.Prefix, bookPath, coverFile)
}

// Get streams a book's cover image. The caller must close the reader.
// Returns ErrNotFound if the book has no cover in the bucket.
func (s *Storage) Get(ctx context.Context, bookPath string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(bookPath)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("covers: get object: %w", err)
	}
	return out.Body, nil
}

// URL returns a presigned GET URL for a book's cover. A zero expiry
// uses DefaultURLExpiry.
func (s *Storage) URL(ctx context.Context, bookPath string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(bookPath)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("covers: presign: %w", err)
	}
	return req.URL, nil
}

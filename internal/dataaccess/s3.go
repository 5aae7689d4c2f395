package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/swxlab/swxkit/internal/config"
	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/internal/filename"
)

// S3Options holds connection settings for the archive buckets.
type S3Options struct {
	// Region is the AWS region the buckets live in.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing, required for MinIO.
	UsePathStyle bool
	// PresignExpiry bounds the lifetime of presigned URLs.
	PresignExpiry time.Duration
}

// DefaultS3Options returns the settings used against the production
// archive.
func DefaultS3Options() S3Options {
	return S3Options{
		Region:        "us-east-1",
		PresignExpiry: time.Hour,
	}
}

// S3Client searches and downloads products from the mission's S3 buckets.
type S3Client struct {
	client     *s3.Client
	presign    *s3.PresignClient
	mission    config.Mission
	opts       S3Options
	maxRetries int
	log        zerolog.Logger
}

// NewS3Client builds a client from the ambient AWS credential chain.
func NewS3Client(ctx context.Context, mission config.Mission, opts S3Options, log zerolog.Logger) (*S3Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			"load AWS configuration", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewS3ClientWith(client, mission, opts, log), nil
}

// NewS3ClientWith wraps a pre-configured SDK client.
func NewS3ClientWith(client *s3.Client, mission config.Mission, opts S3Options, log zerolog.Logger) *S3Client {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = time.Hour
	}
	return &S3Client{
		client:     client,
		presign:    s3.NewPresignClient(client),
		mission:    mission,
		opts:       opts,
		maxRetries: 3,
		log:        log.With().Str("component", "dataaccess").Logger(),
	}
}

// Search lists every product matching q across the instrument buckets.
func (c *S3Client) Search(ctx context.Context, q Query) ([]Result, error) {
	q, err := normalize(c.mission, q)
	if err != nil {
		return nil, err
	}

	buckets := Buckets(c.mission, q)
	prefixes := Prefixes(q.Levels, q.StartTime, q.EndTime)
	c.log.Info().
		Strs("buckets", buckets).
		Int("prefixes", len(prefixes)).
		Time("start", q.StartTime).
		Time("end", q.EndTime).
		Msg("searching archive")

	var results []Result
	for _, bucket := range buckets {
		for _, prefix := range prefixes {
			page, err := c.listPrefix(ctx, bucket, prefix)
			if err != nil {
				return nil, err
			}
			for _, r := range page {
				if inWindow(q, r) && matchInstrument(c.mission, q, r) && matchLevel(q, r) {
					results = append(results, r)
				}
			}
		}
	}

	c.log.Info().Int("results", len(results)).Msg("search complete")
	return results, nil
}

func (c *S3Client) listPrefix(ctx context.Context, bucket, prefix string) ([]Result, error) {
	var results []Result
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
				fmt.Sprintf("list objects in bucket %s under %s", bucket, prefix), err)
		}
		for _, obj := range page.Contents {
			results = append(results, c.buildResult(bucket, obj))
		}
	}
	return results, nil
}

func (c *S3Client) buildResult(bucket string, obj s3types.Object) Result {
	r := Result{
		Key:    aws.ToString(obj.Key),
		Bucket: bucket,
		Size:   aws.ToInt64(obj.Size),
		ETag:   aws.ToString(obj.ETag),
	}
	if obj.LastModified != nil {
		r.LastModified = *obj.LastModified
	}

	fields, err := filename.Parse(c.mission, r.Key)
	if err != nil {
		c.log.Debug().Str("key", r.Key).Err(err).Msg("key does not follow naming convention")
		return r
	}
	r.Fields = fields
	r.Parsed = true
	return r
}

// Download fetches one product into dir, retrying transient failures,
// and returns the local path.
func (c *S3Client) Download(ctx context.Context, r Result, dir string) (string, error) {
	local := filepath.Join(dir, path.Base(r.Key))

	var resp *s3.GetObjectOutput
	err := c.retryWithBackoff(ctx, func() error {
		var getErr error
		resp, getErr = c.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.Bucket),
			Key:    aws.String(r.Key),
		})
		return getErr
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", kiterrors.NewStorageError(kiterrors.CodeObjectNotFound,
				fmt.Sprintf("object %s not found in bucket %s", r.Key, r.Bucket), err)
		}
		return "", kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			fmt.Sprintf("download %s from bucket %s", r.Key, r.Bucket), err)
	}
	defer resp.Body.Close()

	file, err := os.Create(local)
	if err != nil {
		return "", kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			fmt.Sprintf("create local file %s", local), err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return "", kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			fmt.Sprintf("write local file %s", local), err)
	}

	c.log.Info().Str("key", r.Key).Str("path", local).Msg("downloaded product")
	return local, nil
}

// PresignURL returns a presigned GET URL for a product. When presigning
// fails the public bucket URL is returned instead.
func (c *S3Client) PresignURL(ctx context.Context, r Result) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(r.Key),
	}, s3.WithPresignExpires(c.opts.PresignExpiry))
	if err != nil {
		c.log.Warn().Str("key", r.Key).Err(err).Msg("presign failed, falling back to public URL")
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", r.Bucket, r.Key), nil
	}
	return req.URL, nil
}

// retryWithBackoff executes the operation with exponential backoff.
// Missing objects are never retried.
func (c *S3Client) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		var noSuchKey *s3types.NoSuchKey
		if errors.As(lastErr, &noSuchKey) {
			return lastErr
		}

		if attempt < c.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

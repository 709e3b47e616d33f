// Package publish uploads produced summaries to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/suykerbuyk/logsift/internal/config"
)

// Publisher uploads one output file and returns where it went.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) (string, error)
}

// S3Publisher writes objects under Prefix in Bucket.
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// New returns a publisher for cfg, or nil when no bucket is configured.
// Credentials come from the environment variables cfg names; when both are
// unset the SDK default chain is used.
func New(ctx context.Context, cfg config.PublishConfig, log *slog.Logger) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKey := os.Getenv(cfg.AccessKeyEnv)
	secretKey := os.Getenv(cfg.SecretKeyEnv)
	if accessKey != "" || secretKey != "" {
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("publish credentials: set both %s and %s", cfg.AccessKeyEnv, cfg.SecretKeyEnv)
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
	}, nil
}

// Key returns the object key for an output file name.
func (p *S3Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads data as the object for name.
func (p *S3Publisher) Publish(ctx context.Context, name string, data []byte) (string, error) {
	key := p.Key(name)
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", p.bucket, key, err)
	}

	url := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	p.log.Debug("published", "name", name, "url", url, "bytes", len(data))
	return url, nil
}

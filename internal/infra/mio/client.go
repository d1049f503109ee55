// Package mio opens the MinIO client used to mirror downloaded artifacts.
package mio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	BasePath        string
	Retry           RetryConfig
}

type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.Attempts <= 0 {
		r.Attempts = 3
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 500 * time.Millisecond
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 5 * time.Second
	}
	return r
}

// NewClient builds the client and makes sure the artifact bucket exists.
// Only the bucket check touches the network, so only it is retried.
func NewClient(ctx context.Context, cfg Config) (*minio.Client, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, errors.New("mio: empty endpoint")
	case cfg.Bucket == "":
		return nil, errors.New("mio: empty bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("mio: create client: %w", err)
	}

	err = retry(ctx, cfg.Retry.withDefaults(), func() error {
		return ensureBucket(ctx, client, cfg.Bucket)
	})
	if err != nil {
		return nil, fmt.Errorf("mio: bucket %q: %w", cfg.Bucket, err)
	}

	return client, nil
}

func retry(ctx context.Context, rc RetryConfig, fn func() error) error {
	delay := rc.InitialDelay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == rc.Attempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		slog.Warn("minio not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(delay):
		}
		delay = min(delay*2, rc.MaxDelay)
	}
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

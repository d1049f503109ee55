// Package filestore keeps downloaded artifacts (send logs, split archives)
// on local disk and, when configured, mirrors them to MinIO.
package filestore

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/you-humble/jobclient/internal/infra/store/file/replicator"

	"golang.org/x/sync/errgroup"
)

type Store interface {
	Save(ctx context.Context, reader io.Reader, filename string, size int64) (int64, string, error)
	CleanupOlderThan(ctx context.Context, maxAge time.Duration) error
	Location(filename string) string
	Close(ctx context.Context) error
}

func (s *localStore) Close(context.Context) error { return nil }

// mirroredStore answers from the local store and queues every saved
// artifact for a background copy to MinIO. Location stays local.
type mirroredStore struct {
	*localStore
	remote *minioStore
	mirror *replicator.Replicator
}

func NewMirroredStore(
	ctx context.Context,
	local *localStore,
	remote *minioStore,
	opts replicator.Options,
) *mirroredStore {
	mirror := replicator.New(local, remote, opts)
	mirror.Start(ctx)

	return &mirroredStore{localStore: local, remote: remote, mirror: mirror}
}

func (s *mirroredStore) Save(
	ctx context.Context,
	reader io.Reader,
	filename string,
	size int64,
) (int64, string, error) {
	written, hash, err := s.localStore.Save(ctx, reader, filename, size)
	if err != nil {
		return 0, "", err
	}

	if !s.mirror.Submit(replicator.Copy{Filename: filename, Size: written, Hash: hash}) {
		slog.Warn("artifact kept only locally, mirror queue is full",
			slog.String("filename", filename),
			slog.String("remote", s.remote.Location(filename)),
		)
	}
	return written, hash, nil
}

// CleanupOlderThan ages out both copies; the remote sweep runs alongside
// the local one.
func (s *mirroredStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) error {
	eg, eCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.remote.CleanupOlderThan(eCtx, maxAge) })
	eg.Go(func() error { return s.localStore.CleanupOlderThan(eCtx, maxAge) })
	return eg.Wait()
}

// Close waits for queued copies until ctx is done.
func (s *mirroredStore) Close(ctx context.Context) error {
	return s.mirror.Stop(ctx)
}

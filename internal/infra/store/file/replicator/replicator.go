// Package replicator copies saved artifacts from the local store to a
// remote one in the background. Each copy is retried in place with
// exponential backoff before it is given up.
package replicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type Source interface {
	Open(ctx context.Context, filename string) (io.ReadCloser, int64, error)
}

type Sink interface {
	Save(ctx context.Context, reader io.Reader, filename string, size int64) (int64, string, error)
}

// Copy names one artifact to mirror. Hash, when set, must match the hash
// the sink reports.
type Copy struct {
	Filename string
	Size     int64
	Hash     string
}

type Options struct {
	QueueSize int
	Workers   int
	// Attempts counts the first try.
	Attempts int
	Backoff  time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 16
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Attempts <= 0 {
		o.Attempts = 1
	}
	if o.Backoff <= 0 {
		o.Backoff = 250 * time.Millisecond
	}
	return o
}

type Replicator struct {
	src  Source
	dst  Sink
	opts Options

	copies  chan Copy
	workers sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

func New(src Source, dst Sink, opts Options) *Replicator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Replicator{
		src:    src,
		dst:    dst,
		opts:   opts,
		copies: make(chan Copy, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers. Cancelling ctx does not stop them; Stop does.
func (r *Replicator) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	r.workers.Add(r.opts.Workers)
	for range r.opts.Workers {
		go r.work(r.ctx)
	}
}

// Submit queues c. It reports false when the queue is full or the
// replicator is stopped.
func (r *Replicator) Submit(c Copy) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}

	select {
	case r.copies <- c:
		return true
	default:
		return false
	}
}

// Stop refuses new copies and lets the workers finish the queue. When ctx
// ends first, copies still running are aborted and the rest are skipped.
func (r *Replicator) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.copies)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		slog.Warn("replicator: deadline reached, abandoning queued copies", slog.Int("queued", len(r.copies)))
		r.cancel()
		<-done
	}
	r.cancel()

	return err
}

func (r *Replicator) work(ctx context.Context) {
	defer r.workers.Done()
	for c := range r.copies {
		r.replicate(ctx, c)
	}
}

func (r *Replicator) replicate(ctx context.Context, c Copy) {
	l := slog.With(slog.String("filename", c.Filename))
	delay := r.opts.Backoff

	for attempt := 1; ; attempt++ {
		err := r.copyOnce(ctx, c)
		if err == nil {
			l.Debug("replicator: artifact mirrored", slog.Int("attempt", attempt))
			return
		}
		if attempt >= r.opts.Attempts || ctx.Err() != nil {
			l.Error("replicator: giving up", slog.Int("attempts", attempt), slog.String("error", err.Error()))
			return
		}

		l.Warn("replicator: copy failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			l.Error("replicator: aborted", slog.String("error", err.Error()))
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (r *Replicator) copyOnce(ctx context.Context, c Copy) error {
	rc, size, err := r.src.Open(ctx, c.Filename)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	if c.Size > 0 && c.Size != size {
		return fmt.Errorf("source is %d bytes, expected %d", size, c.Size)
	}

	written, hash, err := r.dst.Save(ctx, rc, c.Filename, size)
	switch {
	case err != nil:
		return fmt.Errorf("save: %w", err)
	case written != size:
		return fmt.Errorf("short copy: %d of %d bytes", written, size)
	case c.Hash != "" && hash != "" && hash != c.Hash:
		return fmt.Errorf("hash %s, expected %s", hash, c.Hash)
	}
	return nil
}

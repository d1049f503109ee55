package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/you-humble/jobclient/internal/domain"
)

const DefaultMaxBytes = 50 << 20

type Uploader interface {
	UploadFolder(ctx context.Context, files []domain.File) (domain.UploadHandle, error)
}

// Observer is told when an upload request starts and ends. UploadFinished
// is called on success and on failure.
type Observer interface {
	UploadStarted(files int, bytes int64)
	UploadFinished(err error)
}

type Coordinator struct {
	maxBytes int64
	uploader Uploader
	observer Observer

	mu     sync.Mutex
	handle domain.UploadHandle
}

func New(maxBytes int64, uploader Uploader, observer Observer) *Coordinator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Coordinator{
		maxBytes: maxBytes,
		uploader: uploader,
		observer: observer,
	}
}

// Upload validates the batch and sends it in one request. Any oversized
// file rejects the whole batch before the network is touched. The handle
// from a previous cycle is dropped in every case.
func (c *Coordinator) Upload(ctx context.Context, files []domain.File) (domain.UploadHandle, error) {
	c.Reset()

	total, err := c.Validate(files)
	if err != nil {
		return "", err
	}

	logger := slog.With(slog.Int("files", len(files)), slog.Int64("bytes", total))
	logger.Info("upload started")
	c.observer.UploadStarted(len(files), total)

	handle, err := c.uploader.UploadFolder(ctx, files)
	if err == nil && !handle.Valid() {
		err = &domain.UploadError{Message: "empty upload handle"}
	}
	if err != nil {
		var ue *domain.UploadError
		if !errors.As(err, &ue) {
			err = &domain.UploadError{Message: "upload failed", Cause: err}
		}
		logger.Error("upload failed", slog.String("error", err.Error()))
		c.observer.UploadFinished(err)
		return "", err
	}

	c.mu.Lock()
	c.handle = handle
	c.mu.Unlock()

	logger.Info("upload finished", slog.String("folder_id", string(handle)))
	c.observer.UploadFinished(nil)
	return handle, nil
}

// Validate returns the total batch size or the first size violation.
func (c *Coordinator) Validate(files []domain.File) (int64, error) {
	if len(files) == 0 {
		return 0, &domain.ValidationError{Reason: "no files selected"}
	}

	var total int64
	for _, f := range files {
		if f.Size() > c.maxBytes {
			return 0, &domain.ValidationError{
				Field:  f.Name(),
				Reason: fmt.Sprintf("file too large (max %dMB)", c.maxBytes>>20),
			}
		}
		total += f.Size()
	}
	return total, nil
}

func (c *Coordinator) Handle() (domain.UploadHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, c.handle.Valid()
}

func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.handle = ""
	c.mu.Unlock()
}

func (c *Coordinator) MaxBytes() int64 { return c.maxBytes }

type nopObserver struct{}

func (nopObserver) UploadStarted(int, int64) {}

func (nopObserver) UploadFinished(error) {}

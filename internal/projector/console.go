package projector

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/you-humble/jobclient/internal/domain"
)

// Console prints progress for a human and mirrors every event to slog.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	baseURL string
	busy    bool
}

func NewConsole(out io.Writer, baseURL string) *Console {
	return &Console{out: out, baseURL: baseURL}
}

// Busy reports whether an upload or a job is in progress.
func (c *Console) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Console) UploadStarted(files int, bytes int64) {
	slog.Info("uploading", slog.Int("files", files), slog.Int64("bytes", bytes))
	c.print(true, "Uploading %d file(s), %.1f MB...\n", files, float64(bytes)/(1<<20))
}

func (c *Console) UploadFinished(err error) {
	if err != nil {
		c.print(false, "Upload failed: %v\n", err)
		return
	}
	c.print(false, "Upload finished.\n")
}

func (c *Console) OnSubmitStart() {
	slog.Info("submitting job")
	c.print(true, "Uploading files and starting the job...\n")
}

func (c *Console) OnProgress(sent, total int) {
	pct := Percent(sent, total)
	slog.Debug("job progress", slog.Int("sent", sent), slog.Int("total", total), slog.Int("percent", pct))
	c.print(true, "[%3d%%] Sent %d/%d emails...\n", pct, sent, total)
}

func (c *Console) OnCompleted(id domain.JobID) {
	slog.Info("job completed", slog.String("job_id", string(id)))
	c.print(false, "[100%%] Done. Log: %s/download_log/%s\n", c.baseURL, id)
}

func (c *Console) OnFailed(message string) {
	slog.Warn("job failed", slog.String("message", message))
	c.print(false, "Error: %s\n", message)
}

func (c *Console) print(busy bool, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = busy
	if c.out == nil {
		return
	}
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		slog.Warn("console write", slog.String("error", err.Error()))
	}
}

package projector

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/you-humble/jobclient/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 3 * time.Second

// Redis keeps the latest state of the current job in the hash job:<id>.
// Keys expire after ttl so nothing outlives the client session.
type Redis struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	jobID domain.JobID
}

func NewRedis(rdb redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl, now: time.Now}
}

func (r *Redis) OnSubmitStart() {
	r.mu.Lock()
	r.jobID = ""
	r.mu.Unlock()
}

func (r *Redis) OnJobCreated(id domain.JobID) {
	r.mu.Lock()
	r.jobID = id
	r.mu.Unlock()
	r.write(id, map[string]any{"state": string(domain.EnginePolling), "sent": 0, "total": 0})
}

func (r *Redis) OnProgress(sent, total int) {
	r.write(r.current(), map[string]any{
		"state":   string(domain.EnginePolling),
		"sent":    sent,
		"total":   total,
		"percent": Percent(sent, total),
	})
}

func (r *Redis) OnCompleted(id domain.JobID) {
	r.write(id, map[string]any{"state": string(domain.EngineCompleted), "percent": 100, "error": ""})
}

func (r *Redis) OnFailed(message string) {
	r.write(r.current(), map[string]any{"state": string(domain.EngineFailed), "error": message})
}

func (r *Redis) current() domain.JobID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobID
}

func (r *Redis) write(id domain.JobID, values map[string]any) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	values["updated_at"] = strconv.FormatInt(r.now().UnixNano(), 10)
	key := jobKey(id)

	if err := r.rdb.HSet(ctx, key, values).Err(); err != nil {
		slog.Warn("redis HSet", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
		slog.Warn("redis Expire", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func jobKey(id domain.JobID) string {
	return "job:" + string(id)
}

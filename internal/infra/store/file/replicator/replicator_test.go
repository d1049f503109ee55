package replicator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu       sync.Mutex
	files    map[string][]byte
	failures int
	saves    int
	// block makes Save wait for ctx.
	block bool
}

func newMem() *memStorage { return &memStorage{files: map[string][]byte{}} }

func (m *memStorage) Save(ctx context.Context, r io.Reader, name string, _ int64) (int64, string, error) {
	m.mu.Lock()
	m.saves++
	block := m.block
	fail := m.failures > 0
	if fail {
		m.failures--
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, "", ctx.Err()
	}
	if fail {
		return 0, "", errors.New("remote unavailable")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, "", err
	}
	m.mu.Lock()
	m.files[name] = data
	m.mu.Unlock()
	return int64(len(data)), "", nil
}

func (m *memStorage) Open(_ context.Context, name string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, 0, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memStorage) get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.files[name]
	return d, ok
}

func (m *memStorage) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func stopWithin(t *testing.T, r *Replicator, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.Stop(ctx)
}

func TestRetriesThenMirrors(t *testing.T) {
	local, remote := newMem(), newMem()
	local.files["log.csv"] = []byte("a,b\n")
	remote.failures = 2

	r := New(local, remote, Options{Workers: 2, Attempts: 3, Backoff: time.Millisecond})
	r.Start(context.Background())
	require.True(t, r.Submit(Copy{Filename: "log.csv", Size: 4}))

	require.NoError(t, stopWithin(t, r, 2*time.Second))

	data, ok := remote.get("log.csv")
	require.True(t, ok)
	assert.Equal(t, "a,b\n", string(data))
	assert.Equal(t, 3, remote.saveCount())

	assert.False(t, r.Submit(Copy{Filename: "late.csv"}), "stopped replicator refuses copies")
	assert.NoError(t, r.Stop(context.Background()))
}

func TestGivesUpAfterAttempts(t *testing.T) {
	local, remote := newMem(), newMem()
	local.files["log.csv"] = []byte("x")
	remote.failures = 10

	r := New(local, remote, Options{Attempts: 2, Backoff: time.Millisecond})
	r.Start(context.Background())
	require.True(t, r.Submit(Copy{Filename: "log.csv"}))

	require.NoError(t, stopWithin(t, r, 2*time.Second))

	_, ok := remote.get("log.csv")
	assert.False(t, ok)
	assert.Equal(t, 2, remote.saveCount())
}

func TestSizeMismatchIsNotCopied(t *testing.T) {
	local, remote := newMem(), newMem()
	local.files["log.csv"] = []byte("abc")

	r := New(local, remote, Options{Attempts: 1})
	r.Start(context.Background())
	require.True(t, r.Submit(Copy{Filename: "log.csv", Size: 10}))
	require.NoError(t, stopWithin(t, r, 2*time.Second))

	assert.Zero(t, remote.saveCount())
}

func TestStopDeadlineAbortsRunningCopy(t *testing.T) {
	local, remote := newMem(), newMem()
	local.files["a.zip"] = []byte("PK")
	local.files["b.zip"] = []byte("PK")
	remote.block = true

	r := New(local, remote, Options{Attempts: 5, Backoff: time.Hour})
	r.Start(context.Background())
	require.True(t, r.Submit(Copy{Filename: "a.zip"}))
	require.True(t, r.Submit(Copy{Filename: "b.zip"}))

	start := time.Now()
	err := stopWithin(t, r, 30*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSubmitRefusesWhenQueueFull(t *testing.T) {
	r := New(newMem(), newMem(), Options{QueueSize: 1})

	assert.True(t, r.Submit(Copy{Filename: "a"}))
	assert.False(t, r.Submit(Copy{Filename: "b"}))
	assert.NoError(t, stopWithin(t, r, time.Second))
}

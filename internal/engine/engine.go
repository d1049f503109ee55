// Package engine drives one job from submission to a terminal state.
//
// Submit creates the job and opens a polling session. The session checks
// the job status at a fixed interval, one check at a time, until the server
// reports completed or failed or a check cannot be completed. Events are
// delivered to a Projector; a cancelled session delivers none.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/you-humble/jobclient/internal/domain"

	"github.com/google/uuid"
)

const DefaultPollInterval = 2 * time.Second

type Gateway interface {
	CreateJob(ctx context.Context, jr domain.JobRequest) (domain.JobID, error)
	GetStatus(ctx context.Context, id domain.JobID) (domain.JobStatus, error)
}

// Projector renders engine events. Calls are serialized. Implementations
// may read engine state but must not call Submit or Cancel synchronously.
type Projector interface {
	OnSubmitStart()
	OnProgress(sent, total int)
	OnCompleted(id domain.JobID)
	OnFailed(message string)
}

// JobObserver is implemented by projectors that want the job id as soon as
// the job exists.
type JobObserver interface {
	OnJobCreated(id domain.JobID)
}

type Options struct {
	PollInterval time.Duration
	// RequireHandle rejects requests that carry no upload handle.
	RequireHandle bool
}

type Engine struct {
	gw            Gateway
	projector     Projector
	interval      time.Duration
	requireHandle bool

	// emitMu serializes transitions with event delivery so that nothing is
	// emitted for a session after Cancel returns.
	emitMu sync.Mutex

	mu     sync.Mutex
	state  domain.EngineState
	active *Session
}

func New(gw Gateway, projector Projector, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Engine{
		gw:            gw,
		projector:     projector,
		interval:      opts.PollInterval,
		requireHandle: opts.RequireHandle,
		state:         domain.EngineIdle,
	}
}

func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Active returns the session currently polling, if any.
func (e *Engine) Active() (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.active != nil
}

// Submit creates the job and starts polling it. Validation failures return
// before any state change or network call. The returned session outlives
// ctx; stop it with Session.Cancel.
func (e *Engine) Submit(ctx context.Context, jr domain.JobRequest) (*Session, error) {
	if e.requireHandle && !jr.HasHandle() {
		return nil, &domain.ValidationError{Field: "folder_id", Reason: domain.ErrNoHandle.Error()}
	}

	e.mu.Lock()
	if e.state == domain.EngineSubmitting || e.state == domain.EnginePolling {
		e.mu.Unlock()
		return nil, domain.ErrBusy
	}
	e.state = domain.EngineSubmitting
	e.mu.Unlock()

	e.emit(func(p Projector) { p.OnSubmitStart() })

	id, err := e.gw.CreateJob(ctx, jr)
	if err != nil {
		msg := submitMessage(err)
		slog.Error("create job", slog.String("error", err.Error()))

		e.emitMu.Lock()
		e.setState(domain.EngineFailed)
		e.projector.OnFailed(msg)
		e.emitMu.Unlock()
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		engine: e,
		id:     id,
		token:  uuid.NewString(),
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: slog.With(slog.String("job_id", string(id))),
	}

	s.logger.Info("job created, polling", slog.String("interval", e.interval.String()))

	// Publishing the session and announcing it happen under emitMu, so a
	// Cancel that finds the session returns only after OnJobCreated.
	e.emitMu.Lock()
	e.mu.Lock()
	e.state = domain.EnginePolling
	e.active = s
	e.mu.Unlock()
	if jo, ok := e.projector.(JobObserver); ok {
		jo.OnJobCreated(id)
	}
	e.emitMu.Unlock()

	go s.run(e.interval)

	return s, nil
}

// Cancel stops the active session, if any.
func (e *Engine) Cancel() {
	if s, ok := e.Active(); ok {
		s.Cancel()
	}
}

func (e *Engine) setState(st domain.EngineState) {
	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
}

func (e *Engine) emit(fn func(Projector)) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	fn(e.projector)
}

func submitMessage(err error) string {
	var se *domain.SubmitError
	if errors.As(err, &se) {
		return se.UserMessage()
	}
	return err.Error()
}

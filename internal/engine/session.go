package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/you-humble/jobclient/internal/domain"
)

// Session is the polling loop bound to one job. Its mutable fields are
// guarded by the owning engine's mu.
type Session struct {
	engine *Engine
	id     domain.JobID
	token  string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	seq     uint64
	closed  bool
	outcome domain.Outcome
	done    chan struct{}
}

func (s *Session) JobID() domain.JobID { return s.id }

func (s *Session) Token() string { return s.token }

func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (domain.Outcome, error) {
	select {
	case <-s.done:
		s.engine.mu.Lock()
		out := s.outcome
		s.engine.mu.Unlock()
		return out, out.Err
	case <-ctx.Done():
		return domain.Outcome{JobID: s.id}, ctx.Err()
	}
}

// Cancel stops polling. No event is emitted for this session once Cancel
// returns; an in-flight check is abandoned and its result discarded.
func (s *Session) Cancel() {
	e := s.engine
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.closed {
		return
	}
	s.logger.Info("polling cancelled")
	s.closeLocked(domain.Outcome{JobID: s.id, State: domain.EngineIdle, Err: domain.ErrCancelled}, domain.EngineIdle)
	close(s.done)
}

func (s *Session) run(interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		seq, ok := s.issue()
		if !ok {
			return
		}

		st, err := s.engine.gw.GetStatus(s.ctx, s.id)
		if s.apply(seq, st, err) {
			return
		}
		timer.Reset(interval)
	}
}

// issue records a new check and returns its sequence number.
func (s *Session) issue() (uint64, bool) {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.closed || e.active != s {
		return 0, false
	}
	s.seq++
	return s.seq, true
}

// apply acts on the result of check seq. It reports whether the loop must
// stop.
func (s *Session) apply(seq uint64, st domain.JobStatus, err error) bool {
	e := s.engine
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	switch {
	case s.closed || e.active != s:
		e.mu.Unlock()
		s.logger.Debug("discarding status of closed session", slog.Uint64("seq", seq))
		return true
	case seq != s.seq:
		e.mu.Unlock()
		s.logger.Debug("discarding stale status", slog.Uint64("seq", seq), slog.Uint64("latest", s.seq))
		return false
	}

	if err != nil {
		msg := pollMessage(err)
		s.logger.Error("status check failed", slog.String("error", err.Error()))
		s.closeLocked(domain.Outcome{
			JobID:   s.id,
			State:   domain.EngineFailed,
			Message: msg,
			Err:     err,
		}, domain.EngineFailed)
		e.mu.Unlock()
		e.projector.OnFailed(msg)
		close(s.done)
		return true
	}

	switch st.State {
	case domain.StateProcessing:
		e.mu.Unlock()
		sent, total := normalizeProgress(s.logger, st)
		e.projector.OnProgress(sent, total)
		return false

	case domain.StateCompleted:
		s.logger.Info("job completed")
		s.closeLocked(domain.Outcome{JobID: s.id, State: domain.EngineCompleted}, domain.EngineCompleted)
		e.mu.Unlock()
		e.projector.OnCompleted(s.id)
		close(s.done)
		return true

	case domain.StateFailed:
		msg := st.Error
		if msg == "" {
			msg = domain.MsgSendFailed
		}
		s.logger.Warn("job failed", slog.String("reason", st.Error))
		s.closeLocked(domain.Outcome{
			JobID:   s.id,
			State:   domain.EngineFailed,
			Message: msg,
			Err:     &domain.PollError{Kind: domain.PollServerFailed, JobID: s.id, Message: msg},
		}, domain.EngineFailed)
		e.mu.Unlock()
		e.projector.OnFailed(msg)
		close(s.done)
		return true

	default:
		e.mu.Unlock()
		s.logger.Warn("unknown job status, still polling", slog.String("status", string(st.State)))
		return false
	}
}

// closeLocked ends the session. Callers hold engine.mu and close done once
// the terminal event has been delivered.
func (s *Session) closeLocked(out domain.Outcome, state domain.EngineState) {
	e := s.engine
	s.closed = true
	s.outcome = out
	s.cancel()
	if e.active == s {
		e.active = nil
		e.state = state
	}
}

func normalizeProgress(logger *slog.Logger, st domain.JobStatus) (int, int) {
	sent, total := max(st.Progress, 0), max(st.Total, 0)
	if total > 0 && sent > total {
		logger.Warn("progress exceeds total, clamping",
			slog.Int("progress", sent),
			slog.Int("total", total),
		)
		sent = total
	}
	return sent, total
}

// pollMessage keeps an error reported by the server verbatim; every other
// failed check reads as a lost connection.
func pollMessage(err error) string {
	var pe *domain.PollError
	if errors.As(err, &pe) && pe.Kind == domain.PollServerFailed && pe.Message != "" {
		return pe.Message
	}
	return domain.MsgConnectionLost
}

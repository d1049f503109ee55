package projector

import (
	"github.com/you-humble/jobclient/internal/domain"
	"github.com/you-humble/jobclient/internal/engine"
	"github.com/you-humble/jobclient/internal/upload"
)

// Multi forwards every event to each target in order. Targets may
// implement any subset of engine.Projector, engine.JobObserver and
// upload.Observer.
type Multi struct {
	targets []any
}

func NewMulti(targets ...any) *Multi {
	return &Multi{targets: targets}
}

func (m *Multi) Add(target any) {
	m.targets = append(m.targets, target)
}

func (m *Multi) UploadStarted(files int, bytes int64) {
	for _, t := range m.targets {
		if o, ok := t.(upload.Observer); ok {
			o.UploadStarted(files, bytes)
		}
	}
}

func (m *Multi) UploadFinished(err error) {
	for _, t := range m.targets {
		if o, ok := t.(upload.Observer); ok {
			o.UploadFinished(err)
		}
	}
}

func (m *Multi) OnSubmitStart() {
	m.each(func(p engine.Projector) { p.OnSubmitStart() })
}

func (m *Multi) OnJobCreated(id domain.JobID) {
	for _, t := range m.targets {
		if o, ok := t.(engine.JobObserver); ok {
			o.OnJobCreated(id)
		}
	}
}

func (m *Multi) OnProgress(sent, total int) {
	m.each(func(p engine.Projector) { p.OnProgress(sent, total) })
}

func (m *Multi) OnCompleted(id domain.JobID) {
	m.each(func(p engine.Projector) { p.OnCompleted(id) })
}

func (m *Multi) OnFailed(message string) {
	m.each(func(p engine.Projector) { p.OnFailed(message) })
}

func (m *Multi) each(fn func(engine.Projector)) {
	for _, t := range m.targets {
		if p, ok := t.(engine.Projector); ok {
			fn(p)
		}
	}
}

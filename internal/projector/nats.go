package projector

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/you-humble/jobclient/internal/domain"

	"github.com/nats-io/nats.go"
)

const defaultAckWait = 5 * time.Second

// Publisher is the part of nats.JetStreamContext the projector needs.
type Publisher interface {
	PublishMsgAsync(m *nats.Msg, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// NATS publishes each event as JSON on <subject>.<event type>. Acks are
// awaited off the caller's goroutine, so a slow broker never holds up the
// engine. Publish failures are logged and never reach the engine.
type NATS struct {
	pub     Publisher
	subject string
	now     func() time.Time
	ackWait time.Duration

	mu    sync.Mutex
	jobID domain.JobID
}

func NewNATS(pub Publisher, subject string) *NATS {
	return &NATS{pub: pub, subject: subject, now: time.Now, ackWait: defaultAckWait}
}

func (n *NATS) UploadStarted(files int, bytes int64) {
	n.publish(Event{Type: EventUploadStarted, Files: files, Bytes: bytes})
}

func (n *NATS) UploadFinished(err error) {
	ev := Event{Type: EventUploadFinished}
	if err != nil {
		ev.Message = err.Error()
	}
	n.publish(ev)
}

func (n *NATS) OnSubmitStart() {
	n.mu.Lock()
	n.jobID = ""
	n.mu.Unlock()
	n.publish(Event{Type: EventSubmitStart})
}

func (n *NATS) OnJobCreated(id domain.JobID) {
	n.mu.Lock()
	n.jobID = id
	n.mu.Unlock()
	n.publish(Event{Type: EventJobCreated})
}

func (n *NATS) OnProgress(sent, total int) {
	n.publish(Event{Type: EventProgress, Sent: sent, Total: total, Percent: Percent(sent, total)})
}

func (n *NATS) OnCompleted(id domain.JobID) {
	n.publish(Event{Type: EventCompleted, JobID: id, Percent: 100})
}

func (n *NATS) OnFailed(message string) {
	n.publish(Event{Type: EventFailed, Message: message})
}

func (n *NATS) publish(ev Event) {
	n.mu.Lock()
	if ev.JobID == "" {
		ev.JobID = n.jobID
	}
	n.mu.Unlock()
	ev.At = n.now().UTC()

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal event", slog.String("error", err.Error()))
		return
	}

	msg := &nats.Msg{
		Subject: n.subject + "." + string(ev.Type),
		Data:    data,
		Header:  nats.Header{},
	}
	if ev.JobID != "" {
		msg.Header.Set("Job-Id", string(ev.JobID))
	}

	fut, err := n.pub.PublishMsgAsync(msg)
	if err != nil {
		slog.Warn("publish event",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}

	go n.awaitAck(msg.Subject, fut)
}

func (n *NATS) awaitAck(subject string, fut nats.PubAckFuture) {
	timer := time.NewTimer(n.ackWait)
	defer timer.Stop()

	select {
	case ack := <-fut.Ok():
		slog.Debug("event published",
			slog.String("subject", subject),
			slog.String("stream", ack.Stream),
			slog.Uint64("seq", ack.Sequence),
		)
	case err := <-fut.Err():
		slog.Warn("event not acknowledged",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
	case <-timer.C:
		slog.Warn("event ack timed out", slog.String("subject", subject))
	}
}

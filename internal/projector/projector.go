// Package projector renders job engine and upload events: on a terminal,
// on a NATS stream, as a Redis snapshot, or all of them at once.
package projector

import (
	"math"
	"time"

	"github.com/you-humble/jobclient/internal/domain"
)

type EventType string

const (
	EventUploadStarted  EventType = "upload_started"
	EventUploadFinished EventType = "upload_finished"
	EventSubmitStart    EventType = "submit_start"
	EventJobCreated     EventType = "job_created"
	EventProgress       EventType = "progress"
	EventCompleted      EventType = "completed"
	EventFailed         EventType = "failed"
)

type Event struct {
	Type    EventType    `json:"type"`
	JobID   domain.JobID `json:"job_id,omitempty"`
	Sent    int          `json:"sent,omitempty"`
	Total   int          `json:"total,omitempty"`
	Percent int          `json:"percent,omitempty"`
	Files   int          `json:"files,omitempty"`
	Bytes   int64        `json:"bytes,omitempty"`
	Message string       `json:"message,omitempty"`
	At      time.Time    `json:"at"`
}

// Percent is the rounded completion percentage, 0 while total is unknown.
func Percent(sent, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(sent) / float64(total) * 100))
}

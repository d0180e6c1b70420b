package events

import (
	"time"

	"github.com/orgsync/directory-sync/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSyncStarted   EventType = "sync.started"
	EventSyncCompleted EventType = "sync.completed"
	EventSyncFailed    EventType = "sync.failed"
)

// Event represents a lifecycle event emitted by the sync service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SyncStartedPayload payload.
type SyncStartedPayload struct {
	Mode    domain.SyncMode    `json:"mode"`
	Options domain.SyncOptions `json:"options"`
}

// SyncFinishedPayload is carried by both completed and failed events.
type SyncFinishedPayload struct {
	Result *domain.SyncResult `json:"result"`
}

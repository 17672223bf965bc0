package kafka

import "time"

// Events published BY the coordinator. Message carries the rendered chat text
// so the gateway can forward it as is.

type SessionStartedEvent struct {
	EventID         string    `json:"event_id"`
	SessionID       string    `json:"session_id"`
	OwnerID         int64     `json:"owner_id"`
	ChatID          int64     `json:"chat_id"`
	DisplayName     string    `json:"display_name"`
	TargetURL       string    `json:"target_url"`
	DurationSeconds int64     `json:"duration_seconds"`
	StartTime       time.Time `json:"start_time"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}

type SessionQueuedEvent struct {
	EventID     string    `json:"event_id"`
	RequesterID int64     `json:"requester_id"`
	ChatID      int64     `json:"chat_id"`
	Position    int       `json:"position"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// SessionStatusEvent replaces any earlier status event of the same session
// with a lower Sequence.
type SessionStatusEvent struct {
	EventID          string    `json:"event_id"`
	SessionID        string    `json:"session_id"`
	OwnerID          int64     `json:"owner_id"`
	ChatID           int64     `json:"chat_id"`
	Sequence         uint64    `json:"sequence"`
	RequestCount     int64     `json:"request_count"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}

type SessionEndedEvent struct {
	EventID       string    `json:"event_id"`
	SessionID     string    `json:"session_id"`
	OwnerID       int64     `json:"owner_id"`
	ChatID        int64     `json:"chat_id"`
	TotalRequests int64     `json:"total_requests"`
	Reason        string    `json:"reason"` // owner, expired
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

type RankingResetEvent struct {
	EventID   string    `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Events consumed BY the coordinator (from edge listeners)

type HitEvent struct {
	Path      string    `json:"path"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

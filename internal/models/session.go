package models

import "time"

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnding SessionStatus = "ending"
)

// Session is the single exclusive, time-boxed traffic session.
type Session struct {
	ID           string        `json:"id"`
	OwnerID      int64         `json:"owner_id"`
	DisplayName  string        `json:"display_name"`
	ChatID       int64         `json:"chat_id"`
	SecretPath   string        `json:"secret_path"`
	RequestCount int64         `json:"request_count"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	Domain       string        `json:"domain"`
	Status       SessionStatus `json:"status"`
	Generation   uint64        `json:"generation"`
}

func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

func (s *Session) EndsAt() time.Time {
	return s.StartTime.Add(s.Duration)
}

// Remaining may be negative once the session has run past its lifetime.
func (s *Session) Remaining(now time.Time) time.Duration {
	return s.Duration - now.Sub(s.StartTime)
}

func (s *Session) IsExpired(now time.Time) bool {
	return s.Remaining(now) <= 0
}

func (s *Session) TargetURL() string {
	return s.Domain + s.SecretPath
}

// QueueEntry is a requester waiting for the session slot. ChatID is the
// handle used to reply to the requester once promoted.
type QueueEntry struct {
	RequesterID int64     `json:"requester_id"`
	DisplayName string    `json:"display_name"`
	ChatID      int64     `json:"chat_id"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

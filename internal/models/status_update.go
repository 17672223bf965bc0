package models

import "time"

type UpdateType string

const UpdateTypeProgress UpdateType = "session_progress"

// StatusUpdate is emitted by the status broadcaster. Sequence increases per
// session so a consumer can drop every update but the latest one.
type StatusUpdate struct {
	SessionID    string        `json:"session_id"`
	OwnerID      int64         `json:"owner_id"`
	ChatID       int64         `json:"chat_id"`
	DisplayName  string        `json:"display_name"`
	UpdateType   UpdateType    `json:"update_type"`
	Sequence     uint64        `json:"sequence"`
	RequestCount int64         `json:"request_count"`
	Remaining    time.Duration `json:"remaining"`
	Timestamp    time.Time     `json:"timestamp"`
}

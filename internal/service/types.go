package service

import (
	"time"

	"github.com/vogiaan1904/trafficroom/internal/models"
)

type StartInput struct {
	RequesterID int64
	DisplayName string
	ChatID      int64
}

type StartKind string

const (
	StartKindStarted StartKind = "started"
	StartKindQueued  StartKind = "queued"
)

type StartResult struct {
	Kind     StartKind
	Session  *models.Session
	Position int
	// Degraded is set when the in-memory transition applied but could not be persisted.
	Degraded bool
}

type EndKind string

const (
	EndKindEnded    EndKind = "ended"
	EndKindRejected EndKind = "rejected"
)

type RejectReason string

const (
	RejectReasonNoSession RejectReason = "no_active_session"
	RejectReasonNotOwner  RejectReason = "not_owner"
)

type EndResult struct {
	Kind         EndKind
	RejectReason RejectReason
	Summary      *models.HistoryRecord
	// Promoted is the session started for the head of the queue, if any.
	Promoted *models.Session
	Degraded bool
}

type HitVerdict string

const (
	HitAccepted             HitVerdict = "accepted"
	HitRejectedNoSession    HitVerdict = "rejected_no_session"
	HitRejectedPathMismatch HitVerdict = "rejected_path_mismatch"
)

type Snapshot struct {
	SessionID    string        `json:"session_id"`
	OwnerID      int64         `json:"owner_id"`
	DisplayName  string        `json:"display_name"`
	SecretPath   string        `json:"path"`
	TargetURL    string        `json:"target_url"`
	RequestCount int64         `json:"request_count"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	Remaining    time.Duration `json:"remaining"`
	QueueLength  int           `json:"queue_length"`
}

package repository

import (
	"context"

	"github.com/vogiaan1904/trafficroom/internal/models"
)

// SessionRepository stores the active-session record. Every Save is a full
// rewrite of the record.
type SessionRepository interface {
	Save(ctx context.Context, ss *models.Session) error
	// Load returns nil when no session is stored or the stored record is unreadable.
	Load(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
}

// HistoryRepository is the append-only log of completed sessions.
type HistoryRepository interface {
	Append(ctx context.Context, rec models.HistoryRecord) error
	// List skips entries that fail to decode.
	List(ctx context.Context) ([]models.HistoryRecord, error)
	Reset(ctx context.Context) error
	LastResult(ctx context.Context, ownerID int64) (*models.HistoryRecord, error)
}

// UserRepository is the set of requester ids ever observed.
type UserRepository interface {
	Add(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]int64, error)
}

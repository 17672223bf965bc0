package service

import (
	"context"

	"github.com/vogiaan1904/trafficroom/internal/models"
)

// SessionCoordinator is the surface the delivery layer drives.
type SessionCoordinator interface {
	Start(ctx context.Context, in StartInput) (StartResult, error)
	End(ctx context.Context, requesterID int64) EndResult
	RecordHit(ctx context.Context, path string) HitVerdict
	Status() (Snapshot, bool)
	Rank(ctx context.Context, limit int) ([]models.HistoryRecord, error)
	QueuePosition(requesterID int64) int
	Healthy() bool
}

// Notifier delivers coordinator events to the chat side. Implementations
// must not call back into the coordinator.
type Notifier interface {
	SessionStarted(ctx context.Context, ss models.Session) error
	SessionQueued(ctx context.Context, entry models.QueueEntry, position int) error
	StatusUpdate(ctx context.Context, upd models.StatusUpdate) error
	SessionEnded(ctx context.Context, rec models.HistoryRecord, chatID int64) error
	RankingReset(ctx context.Context, userIDs []int64, message string) error
}

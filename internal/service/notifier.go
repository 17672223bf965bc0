package service

import (
	"context"
	"time"

	"github.com/vogiaan1904/trafficroom/internal/models"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

type logNotifier struct {
	l logger.Logger
}

// NewLogNotifier returns a Notifier that only writes events to the log. It is
// used when no message broker is configured.
func NewLogNotifier(l logger.Logger) Notifier {
	return &logNotifier{l: l}
}

func (n *logNotifier) SessionStarted(ctx context.Context, ss models.Session) error {
	n.l.Infof(ctx, "notify: session started owner_id=%d target=%s duration=%s", ss.OwnerID, ss.TargetURL(), ss.Duration)
	return nil
}

func (n *logNotifier) SessionQueued(ctx context.Context, entry models.QueueEntry, position int) error {
	n.l.Infof(ctx, "notify: requester queued requester_id=%d position=%d", entry.RequesterID, position)
	return nil
}

func (n *logNotifier) StatusUpdate(ctx context.Context, upd models.StatusUpdate) error {
	n.l.Debugf(ctx, "notify: status seq=%d requests=%d remaining=%s",
		upd.Sequence, upd.RequestCount, upd.Remaining.Round(time.Second))
	return nil
}

func (n *logNotifier) SessionEnded(ctx context.Context, rec models.HistoryRecord, chatID int64) error {
	n.l.Infof(ctx, "notify: session ended owner_id=%d chat_id=%d total_requests=%d reason=%s",
		rec.OwnerID, chatID, rec.TotalRequests, rec.Reason)
	return nil
}

func (n *logNotifier) RankingReset(ctx context.Context, userIDs []int64, message string) error {
	n.l.Infof(ctx, "notify: ranking reset users=%d message=%q", len(userIDs), message)
	return nil
}

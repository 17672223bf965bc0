package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/trafficroom/config"
	"github.com/vogiaan1904/trafficroom/internal/models"
	"github.com/vogiaan1904/trafficroom/internal/queue"
	repo "github.com/vogiaan1904/trafficroom/internal/repository/redis"
	"github.com/vogiaan1904/trafficroom/internal/token"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

type CoordinatorConfig struct {
	Duration       time.Duration
	StatusInterval time.Duration
	Domain         string
	Retry          retryPolicy
	// HitRetry applies to request count writes. A failed count write is
	// carried by the next session write, which rewrites the whole record.
	HitRetry retryPolicy
}

// Coordinator owns the single session slot and the queue in front of it.
// Every transition runs inside mu; notifications are sent after mu is released.
type Coordinator struct {
	sessions repo.SessionRepository
	users    repo.UserRepository
	ranking  *RankingService
	tokens   token.Generator
	notifier Notifier
	l        logger.Logger
	config   CoordinatorConfig

	mu            sync.Mutex
	active        *models.Session
	waiting       *queue.FIFO
	generation    uint64
	stopBroadcast context.CancelFunc
	closed        bool

	broadcasters sync.WaitGroup
	healthy      atomic.Bool
}

var _ SessionCoordinator = (*Coordinator)(nil)

func NewCoordinator(
	sessions repo.SessionRepository,
	users repo.UserRepository,
	ranking *RankingService,
	tokens token.Generator,
	notifier Notifier,
	sessCfg config.SessionConfig,
	persCfg config.PersistenceConfig,
	l logger.Logger,
) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		users:    users,
		ranking:  ranking,
		tokens:   tokens,
		notifier: notifier,
		l:        l,
		config: CoordinatorConfig{
			Duration:       sessCfg.Duration,
			StatusInterval: sessCfg.StatusInterval,
			Domain:         sessCfg.Domain,
			Retry: retryPolicy{
				Attempts:  persCfg.RetryAttempts,
				Delay:     persCfg.RetryDelay,
				OpTimeout: persCfg.OpTimeout,
			},
			HitRetry: retryPolicy{
				Attempts:  1,
				OpTimeout: persCfg.HitTimeout,
			},
		},
		waiting: queue.NewFIFO(),
	}
	c.healthy.Store(true)

	return c
}

type notice struct {
	name string
	send func(ctx context.Context) error
}

// Start hands the slot to the requester when it is free, otherwise queues them.
// The only error is a failure of the token source; nothing is mutated then.
func (c *Coordinator) Start(ctx context.Context, in StartInput) (StartResult, error) {
	var notes []notice

	c.mu.Lock()
	res, err := c.startLocked(ctx, in, &notes)
	c.mu.Unlock()

	c.dispatch(ctx, notes)

	return res, err
}

func (c *Coordinator) startLocked(ctx context.Context, in StartInput, notes *[]notice) (StartResult, error) {
	if c.closed {
		return StartResult{}, ErrCoordinatorClosed
	}

	entry := models.QueueEntry{
		RequesterID: in.RequesterID,
		DisplayName: in.DisplayName,
		ChatID:      in.ChatID,
		EnqueuedAt:  time.Now(),
	}

	// A promotion that failed earlier leaves the slot idle with people waiting.
	// They go first.
	if c.active == nil && c.waiting.Len() > 0 {
		c.promoteLocked(ctx, notes)
	}

	if c.active == nil && c.waiting.Len() == 0 {
		ss, degraded, err := c.openSessionLocked(ctx, entry, notes)
		if err != nil {
			return StartResult{}, err
		}

		return StartResult{
			Kind:     StartKindStarted,
			Session:  ss,
			Degraded: degraded,
		}, nil
	}

	pos := c.waiting.Enqueue(entry)
	*notes = append(*notes, notice{
		name: "session queued",
		send: func(ctx context.Context) error { return c.notifier.SessionQueued(ctx, entry, pos) },
	})

	c.l.Infof(ctx, "Requester queued requester_id=%d position=%d", in.RequesterID, pos)

	return StartResult{
		Kind:     StartKindQueued,
		Position: pos,
	}, nil
}

// openSessionLocked allocates a fresh session for entry and starts its
// broadcaster. The returned session is a copy.
func (c *Coordinator) openSessionLocked(ctx context.Context, entry models.QueueEntry, notes *[]notice) (*models.Session, bool, error) {
	path, err := c.tokens.Generate()
	if err != nil {
		c.l.Errorf(ctx, "service.Coordinator.openSession: %v", err)
		return nil, false, fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	c.generation++
	ss := &models.Session{
		ID:           uuid.NewString(),
		OwnerID:      entry.RequesterID,
		DisplayName:  entry.DisplayName,
		ChatID:       entry.ChatID,
		SecretPath:   path,
		RequestCount: 0,
		StartTime:    time.Now(),
		Duration:     c.config.Duration,
		Domain:       c.config.Domain,
		Status:       models.SessionStatusActive,
		Generation:   c.generation,
	}
	c.active = ss

	userOK := c.persist(ctx, "register user", func(ctx context.Context) error {
		return c.users.Add(ctx, ss.OwnerID)
	})
	sessionOK := c.persist(ctx, "save session", func(ctx context.Context) error {
		return c.sessions.Save(ctx, ss)
	})

	c.startBroadcasterLocked(ss)

	started := *ss
	*notes = append(*notes, notice{
		name: "session started",
		send: func(ctx context.Context) error { return c.notifier.SessionStarted(ctx, started) },
	})

	c.l.Infof(ctx, "Session started session_id=%s owner_id=%d generation=%d", ss.ID, ss.OwnerID, ss.Generation)

	return &started, !(userOK && sessionOK), nil
}

// promoteLocked starts a session for the head of the queue. The head is only
// removed once its session exists.
func (c *Coordinator) promoteLocked(ctx context.Context, notes *[]notice) (*models.Session, bool) {
	head, ok := c.waiting.Peek()
	if !ok {
		return nil, false
	}

	ss, degraded, err := c.openSessionLocked(ctx, head, notes)
	if err != nil {
		c.l.Errorf(ctx, "service.Coordinator.promote: requester_id=%d stays at head: %v", head.RequesterID, err)
		return nil, false
	}
	c.waiting.Dequeue()

	c.l.Infof(ctx, "Queued requester promoted requester_id=%d waiting=%d", head.RequesterID, c.waiting.Len())

	return ss, degraded
}

// End finalizes the caller's session and promotes the next requester in the
// same critical section, so no concurrent Start can take the freed slot.
func (c *Coordinator) End(ctx context.Context, requesterID int64) EndResult {
	var notes []notice

	c.mu.Lock()
	res := c.endLocked(ctx, requesterID, &notes)
	c.mu.Unlock()

	c.dispatch(ctx, notes)

	return res
}

func (c *Coordinator) endLocked(ctx context.Context, requesterID int64, notes *[]notice) EndResult {
	if c.active == nil || !c.active.IsActive() {
		return EndResult{Kind: EndKindRejected, RejectReason: RejectReasonNoSession}
	}

	if c.active.OwnerID != requesterID {
		c.l.Debugf(ctx, "End rejected requester_id=%d owner_id=%d", requesterID, c.active.OwnerID)
		return EndResult{Kind: EndKindRejected, RejectReason: RejectReasonNotOwner}
	}

	rec, degraded := c.finalizeLocked(ctx, models.EndReasonOwner, time.Now(), notes)
	promoted, promotedDegraded := c.promoteLocked(ctx, notes)

	return EndResult{
		Kind:     EndKindEnded,
		Summary:  &rec,
		Promoted: promoted,
		Degraded: degraded || promotedDegraded,
	}
}

// finalizeLocked moves the active session through Ending to Idle: the
// broadcaster is cancelled, the summary is appended and the slot cleared.
func (c *Coordinator) finalizeLocked(ctx context.Context, reason models.EndReason, endTime time.Time, notes *[]notice) (models.HistoryRecord, bool) {
	ss := c.active
	ss.Status = models.SessionStatusEnding
	c.stopBroadcasterLocked()

	rec := models.NewHistoryRecord(ss, endTime, reason)

	historyOK := c.persist(ctx, "append history", func(ctx context.Context) error {
		return c.ranking.Append(ctx, rec)
	})

	c.active = nil
	clearOK := c.persist(ctx, "clear session", func(ctx context.Context) error {
		return c.sessions.Clear(ctx)
	})

	chatID := ss.ChatID
	*notes = append(*notes, notice{
		name: "session ended",
		send: func(ctx context.Context) error { return c.notifier.SessionEnded(ctx, rec, chatID) },
	})

	c.l.Infof(ctx, "Session finalized session_id=%s owner_id=%d total_requests=%d reason=%s",
		rec.SessionID, rec.OwnerID, rec.TotalRequests, reason)

	return rec, !(historyOK && clearOK)
}

// RecordHit counts path against the active session. Paths are compared
// byte-for-byte in constant time; there is no normalization.
func (c *Coordinator) RecordHit(ctx context.Context, path string) HitVerdict {
	c.mu.Lock()
	defer c.mu.Unlock()

	ss := c.active
	if ss == nil || !ss.IsActive() || ss.IsExpired(time.Now()) {
		return HitRejectedNoSession
	}

	if subtle.ConstantTimeCompare([]byte(path), []byte(ss.SecretPath)) != 1 {
		return HitRejectedPathMismatch
	}

	ss.RequestCount++
	c.persistWith(ctx, c.config.HitRetry, "save hit count", func(ctx context.Context) error {
		return c.sessions.Save(ctx, ss)
	})

	return HitAccepted
}

func (c *Coordinator) Status() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ss := c.active
	if ss == nil || !ss.IsActive() {
		return Snapshot{}, false
	}

	return Snapshot{
		SessionID:    ss.ID,
		OwnerID:      ss.OwnerID,
		DisplayName:  ss.DisplayName,
		SecretPath:   ss.SecretPath,
		TargetURL:    ss.TargetURL(),
		RequestCount: ss.RequestCount,
		StartTime:    ss.StartTime,
		Duration:     ss.Duration,
		Remaining:    max(ss.Remaining(time.Now()), 0),
		QueueLength:  c.waiting.Len(),
	}, true
}

func (c *Coordinator) Rank(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	return c.ranking.TopN(ctx, limit)
}

// QueuePosition is 0 when the requester is not waiting.
func (c *Coordinator) QueuePosition(requesterID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.waiting.Position(requesterID)
}

// Healthy reports whether the last durable write succeeded.
func (c *Coordinator) Healthy() bool {
	return c.healthy.Load()
}

// Recover rebuilds in-memory state from the store. A session that ran out
// while the process was down is finalized with its nominal end time.
func (c *Coordinator) Recover(ctx context.Context) error {
	ss, err := c.sessions.Load(ctx)
	if err != nil {
		c.healthy.Store(false)
		return fmt.Errorf("failed to load active session: %w", err)
	}

	if ss == nil {
		c.l.Infof(ctx, "No active session to recover")
		return nil
	}

	var notes []notice

	c.mu.Lock()
	c.generation = max(c.generation, ss.Generation)

	last, err := c.ranking.LastResult(ctx, ss.OwnerID)
	if err == nil && last != nil && last.SessionID == ss.ID {
		// finalized before the crash, only the clear was lost
		c.persist(ctx, "clear session", func(ctx context.Context) error {
			return c.sessions.Clear(ctx)
		})
		c.mu.Unlock()

		c.l.Warnf(ctx, "Recovered session was already finalized session_id=%s", ss.ID)
		return nil
	}

	ss.Status = models.SessionStatusActive
	c.active = ss

	if ss.IsExpired(time.Now()) {
		c.finalizeLocked(ctx, models.EndReasonExpired, ss.EndsAt(), &notes)
	} else {
		c.startBroadcasterLocked(ss)
		c.l.Infof(ctx, "Session recovered session_id=%s request_count=%d remaining=%s",
			ss.ID, ss.RequestCount, ss.Remaining(time.Now()).Round(time.Second))
	}
	c.mu.Unlock()

	c.dispatch(ctx, notes)

	return nil
}

// Close stops the broadcaster without finalizing, leaving the stored session
// for Recover on the next start.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopBroadcasterLocked()
	c.mu.Unlock()

	c.broadcasters.Wait()
}

// persist runs a durable write with bounded retry. The caller's cancellation
// is detached so a dropped request cannot abort a write mid-transition.
func (c *Coordinator) persist(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	return c.persistWith(ctx, c.config.Retry, op, fn)
}

func (c *Coordinator) persistWith(ctx context.Context, p retryPolicy, op string, fn func(ctx context.Context) error) bool {
	if err := withRetry(context.WithoutCancel(ctx), p, fn); err != nil {
		c.healthy.Store(false)
		c.l.Errorf(ctx, "service.Coordinator.persist: %s: %v", op, err)
		return false
	}

	c.healthy.Store(true)
	return true
}

func (c *Coordinator) dispatch(ctx context.Context, notes []notice) {
	if len(notes) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, n := range notes {
		if err := n.send(ctx); err != nil {
			c.l.Warnf(ctx, "service.Coordinator.dispatch: %s: %v", n.name, err)
		}
	}
}

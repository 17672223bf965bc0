package service

import (
	"context"
	"time"

	"github.com/vogiaan1904/trafficroom/internal/models"
)

type tickState int

const (
	tickStale tickState = iota
	tickRunning
	tickExpired
)

// broadcaster drives one session: a status update every interval and
// expiry at the exact deadline. It holds no session state of its own
// besides the sequence; every tick re-reads the coordinator under its lock
// and stops as soon as the generation it was started for is gone.
type broadcaster struct {
	c          *Coordinator
	generation uint64
	interval   time.Duration
	until      time.Duration
	seq        uint64
}

// startBroadcasterLocked cancels any previous broadcaster and launches one
// for ss. Callers hold c.mu.
func (c *Coordinator) startBroadcasterLocked(ss *models.Session) {
	c.stopBroadcasterLocked()

	ctx, cancel := context.WithCancel(c.l.With(context.Background(), "session_id", ss.ID))
	c.stopBroadcast = cancel

	b := &broadcaster{
		c:          c,
		generation: ss.Generation,
		interval:   c.config.StatusInterval,
		until:      ss.Remaining(time.Now()),
	}

	c.broadcasters.Add(1)
	go b.run(ctx)
}

func (c *Coordinator) stopBroadcasterLocked() {
	if c.stopBroadcast != nil {
		c.stopBroadcast()
		c.stopBroadcast = nil
	}
}

func (b *broadcaster) run(ctx context.Context) {
	defer b.c.broadcasters.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	deadline := time.NewTimer(max(b.until, 0))
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			if !b.tick(ctx) {
				return
			}
		case <-ticker.C:
			if !b.tick(ctx) {
				return
			}
		}
	}
}

// tick returns false once the broadcaster has nothing left to drive.
func (b *broadcaster) tick(ctx context.Context) bool {
	upd, state := b.c.observe(b.generation)

	switch state {
	case tickStale:
		b.c.l.Debugf(ctx, "service.broadcaster.tick: stale generation=%d", b.generation)
		return false
	case tickExpired:
		b.c.expire(ctx, b.generation)
		return false
	}

	if ctx.Err() != nil {
		return false
	}

	b.seq++
	upd.Sequence = b.seq

	if err := b.c.notifier.StatusUpdate(ctx, upd); err != nil {
		b.c.l.Warnf(ctx, "service.broadcaster.tick: %v", err)
	}

	return true
}

// observe reads the session for generation under the lock.
func (c *Coordinator) observe(generation uint64) (models.StatusUpdate, tickState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ss := c.active
	if c.closed || ss == nil || ss.Generation != generation || !ss.IsActive() {
		return models.StatusUpdate{}, tickStale
	}

	now := time.Now()
	remaining := ss.Remaining(now)
	if remaining <= 0 {
		return models.StatusUpdate{}, tickExpired
	}

	return models.StatusUpdate{
		SessionID:    ss.ID,
		OwnerID:      ss.OwnerID,
		ChatID:       ss.ChatID,
		DisplayName:  ss.DisplayName,
		UpdateType:   models.UpdateTypeProgress,
		RequestCount: ss.RequestCount,
		Remaining:    remaining,
		Timestamp:    now,
	}, tickRunning
}

// expire finalizes the session for generation and promotes the queue head.
// A generation that is no longer current is a no-op.
func (c *Coordinator) expire(ctx context.Context, generation uint64) {
	var notes []notice

	c.mu.Lock()
	ss := c.active
	if c.closed || ss == nil || ss.Generation != generation || !ss.IsActive() {
		c.mu.Unlock()
		return
	}

	c.l.Infof(ctx, "Session expired session_id=%s", ss.ID)

	c.finalizeLocked(ctx, models.EndReasonExpired, time.Now(), &notes)
	c.promoteLocked(ctx, &notes)
	c.mu.Unlock()

	c.dispatch(ctx, notes)
}

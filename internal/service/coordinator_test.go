package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/trafficroom/config"
	"github.com/vogiaan1904/trafficroom/internal/models"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

type coordinatorFixture struct {
	c        *Coordinator
	sessions *memSessionRepo
	history  *memHistoryRepo
	users    *memUserRepo
	tokens   *seqTokens
	notifier *recordingNotifier
}

func newFixture(t *testing.T, duration, interval time.Duration) *coordinatorFixture {
	t.Helper()

	return newFixtureWith(t, duration, interval, config.PersistenceConfig{
		RetryAttempts: 1,
		OpTimeout:     time.Second,
		HitTimeout:    time.Second,
	})
}

func newFixtureWith(t *testing.T, duration, interval time.Duration, pers config.PersistenceConfig) *coordinatorFixture {
	t.Helper()

	l := logger.InitializeTestZapLogger()
	f := &coordinatorFixture{
		sessions: &memSessionRepo{},
		history:  newMemHistoryRepo(),
		users:    newMemUserRepo(),
		tokens:   &seqTokens{},
		notifier: &recordingNotifier{},
	}

	ranking := NewRankingService(f.history, f.users, l)
	f.c = NewCoordinator(
		f.sessions, f.users, ranking, f.tokens, f.notifier,
		config.SessionConfig{
			Duration:       duration,
			StatusInterval: interval,
			Domain:         "https://traffic.example",
		},
		pers,
		l,
	)
	t.Cleanup(f.c.Close)

	return f
}

func start(t *testing.T, c *Coordinator, id int64) StartResult {
	t.Helper()

	res, err := c.Start(context.Background(), StartInput{
		RequesterID: id,
		DisplayName: "user",
		ChatID:      id * 10,
	})
	require.NoError(t, err)

	return res
}

func TestCoordinator_StartOnIdle(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)

	res := start(t, f.c, 1)
	require.Equal(t, StartKindStarted, res.Kind)
	require.NotNil(t, res.Session)
	assert.False(t, res.Degraded)
	assert.Equal(t, int64(1), res.Session.OwnerID)
	assert.True(t, strings.HasPrefix(res.Session.SecretPath, "/target_"))
	assert.Equal(t, "https://traffic.example"+res.Session.SecretPath, res.Session.TargetURL())
	assert.Zero(t, res.Session.RequestCount)

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, res.Session.ID, snap.SessionID)
	assert.Equal(t, res.Session.SecretPath, snap.SecretPath)
	assert.Greater(t, snap.Remaining, time.Duration(0))
	assert.Equal(t, 0, snap.QueueLength)

	stored := f.sessions.stored()
	require.NotNil(t, stored)
	assert.Equal(t, res.Session.ID, stored.ID)

	ids, err := f.users.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestCoordinator_StartWhileActiveQueues(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)

	start(t, f.c, 1)

	second := start(t, f.c, 2)
	assert.Equal(t, StartKindQueued, second.Kind)
	assert.Equal(t, 1, second.Position)
	assert.Nil(t, second.Session)

	third := start(t, f.c, 3)
	assert.Equal(t, StartKindQueued, third.Kind)
	assert.Equal(t, 2, third.Position)

	assert.Equal(t, 1, f.c.QueuePosition(2))
	assert.Equal(t, 2, f.c.QueuePosition(3))
	assert.Equal(t, 0, f.c.QueuePosition(1))

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.OwnerID)
	assert.Equal(t, 2, snap.QueueLength)
}

func TestCoordinator_RecordHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	assert.Equal(t, HitRejectedNoSession, f.c.RecordHit(ctx, "/target_anything"))

	res := start(t, f.c, 1)
	path := res.Session.SecretPath

	for range 3 {
		assert.Equal(t, HitAccepted, f.c.RecordHit(ctx, path))
	}

	assert.Equal(t, HitRejectedPathMismatch, f.c.RecordHit(ctx, path+"/"))
	assert.Equal(t, HitRejectedPathMismatch, f.c.RecordHit(ctx, strings.ToUpper(path)))
	assert.Equal(t, HitRejectedPathMismatch, f.c.RecordHit(ctx, "/"))

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, int64(3), snap.RequestCount)
	assert.Equal(t, int64(3), f.sessions.stored().RequestCount)

	end := f.c.End(ctx, 1)
	require.Equal(t, EndKindEnded, end.Kind)
	assert.Equal(t, int64(3), end.Summary.TotalRequests)

	assert.Equal(t, HitRejectedNoSession, f.c.RecordHit(ctx, path))
}

func TestCoordinator_EndRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	res := f.c.End(ctx, 1)
	assert.Equal(t, EndKindRejected, res.Kind)
	assert.Equal(t, RejectReasonNoSession, res.RejectReason)

	start(t, f.c, 1)

	res = f.c.End(ctx, 2)
	assert.Equal(t, EndKindRejected, res.Kind)
	assert.Equal(t, RejectReasonNotOwner, res.RejectReason)

	_, ok := f.c.Status()
	assert.True(t, ok, "session untouched by a rejected end")
	assert.Empty(t, f.history.all())
}

func TestCoordinator_EndPromotesInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	first := start(t, f.c, 1)
	start(t, f.c, 2)
	start(t, f.c, 3)

	f.c.RecordHit(ctx, first.Session.SecretPath)

	res := f.c.End(ctx, 1)
	require.Equal(t, EndKindEnded, res.Kind)
	require.NotNil(t, res.Summary)
	assert.Equal(t, models.EndReasonOwner, res.Summary.Reason)
	assert.Equal(t, int64(1), res.Summary.TotalRequests)
	assert.Equal(t, first.Session.SecretPath, res.Summary.SecretPath)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, int64(2), res.Promoted.OwnerID)
	assert.NotEqual(t, first.Session.SecretPath, res.Promoted.SecretPath)
	assert.Greater(t, res.Promoted.Generation, first.Session.Generation)

	assert.Equal(t, 1, f.c.QueuePosition(3))

	// the old path is dead, the new one counts from zero
	assert.Equal(t, HitRejectedPathMismatch, f.c.RecordHit(ctx, first.Session.SecretPath))
	assert.Equal(t, HitAccepted, f.c.RecordHit(ctx, res.Promoted.SecretPath))

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.OwnerID)
	assert.Equal(t, int64(1), snap.RequestCount)

	res = f.c.End(ctx, 2)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, int64(3), res.Promoted.OwnerID)

	res = f.c.End(ctx, 3)
	require.Equal(t, EndKindEnded, res.Kind)
	assert.Nil(t, res.Promoted)

	_, ok = f.c.Status()
	assert.False(t, ok)
	assert.Nil(t, f.sessions.stored())
	assert.Len(t, f.history.all(), 3)
}

func TestCoordinator_ExpiryFinalizesAndPromotes(t *testing.T) {
	f := newFixture(t, 80*time.Millisecond, 20*time.Millisecond)

	first := start(t, f.c, 1)
	start(t, f.c, 2)

	assert.Eventually(t, func() bool {
		snap, ok := f.c.Status()
		return ok && snap.OwnerID == 2
	}, 2*time.Second, 5*time.Millisecond)

	recs := f.history.all()
	require.NotEmpty(t, recs)
	assert.Equal(t, first.Session.ID, recs[0].SessionID)
	assert.Equal(t, models.EndReasonExpired, recs[0].Reason)
	assert.False(t, recs[0].EndTime.Before(first.Session.EndsAt()))

	assert.Eventually(t, func() bool {
		_, ok := f.c.Status()
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.Len(t, f.history.all(), 2)
	assert.Nil(t, f.sessions.stored())
}

func TestCoordinator_StatusUpdatesAreSequenced(t *testing.T) {
	f := newFixture(t, time.Minute, 10*time.Millisecond)

	res := start(t, f.c, 1)

	assert.Eventually(t, func() bool {
		return len(f.notifier.statusUpdates()) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	updates := f.notifier.statusUpdates()
	for i, upd := range updates {
		assert.Equal(t, res.Session.ID, upd.SessionID)
		assert.Equal(t, uint64(i+1), upd.Sequence)
		assert.Equal(t, models.UpdateTypeProgress, upd.UpdateType)
		assert.Greater(t, upd.Remaining, time.Duration(0))
	}

	f.c.End(context.Background(), 1)
	time.Sleep(20 * time.Millisecond)
	n := len(f.notifier.statusUpdates())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, len(f.notifier.statusUpdates()), "no updates after the session ended")
}

func TestCoordinator_StaleGenerationIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	first := start(t, f.c, 1)
	start(t, f.c, 2)

	res := f.c.End(ctx, 1)
	require.NotNil(t, res.Promoted)

	_, state := f.c.observe(first.Session.Generation)
	assert.Equal(t, tickStale, state)

	f.c.expire(ctx, first.Session.Generation)

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, res.Promoted.ID, snap.SessionID)
	assert.Len(t, f.history.all(), 1)
}

func TestCoordinator_ConcurrentStartHasOneWinner(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)

	const n = 50
	results := make([]StartResult, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.c.Start(context.Background(), StartInput{RequesterID: int64(i + 1)})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	started := 0
	positions := map[int]bool{}
	for _, res := range results {
		switch res.Kind {
		case StartKindStarted:
			started++
		case StartKindQueued:
			positions[res.Position] = true
		}
	}

	assert.Equal(t, 1, started)
	assert.Len(t, positions, n-1)
	for p := 1; p < n; p++ {
		assert.True(t, positions[p], "position %d handed out", p)
	}
}

func TestCoordinator_ConcurrentEndAndStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	start(t, f.c, 1)
	start(t, f.c, 2)

	var wg sync.WaitGroup
	var late StartResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.c.End(ctx, 1)
	}()
	go func() {
		defer wg.Done()
		var err error
		late, err = f.c.Start(ctx, StartInput{RequesterID: 3})
		assert.NoError(t, err)
	}()
	wg.Wait()

	// whichever ran first, the queued requester keeps priority over the newcomer
	assert.Equal(t, StartKindQueued, late.Kind)

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.OwnerID)
}

func TestCoordinator_PersistenceFailureIsDegraded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	f.sessions.fail.Store(true)

	res := start(t, f.c, 1)
	require.Equal(t, StartKindStarted, res.Kind)
	assert.True(t, res.Degraded)
	assert.False(t, f.c.Healthy())

	// the in-memory transition still applied
	assert.Equal(t, HitAccepted, f.c.RecordHit(ctx, res.Session.SecretPath))

	f.sessions.fail.Store(false)
	assert.Equal(t, HitAccepted, f.c.RecordHit(ctx, res.Session.SecretPath))
	assert.True(t, f.c.Healthy())
	assert.Equal(t, int64(2), f.sessions.stored().RequestCount)

	f.history.fail.Store(true)
	end := f.c.End(ctx, 1)
	require.Equal(t, EndKindEnded, end.Kind)
	assert.True(t, end.Degraded)

	_, ok := f.c.Status()
	assert.False(t, ok)
}

func TestCoordinator_HitWriteIsSingleShortAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWith(t, time.Minute, time.Minute, config.PersistenceConfig{
		RetryAttempts: 3,
		RetryDelay:    10 * time.Millisecond,
		OpTimeout:     time.Second,
		HitTimeout:    20 * time.Millisecond,
	})

	res := start(t, f.c, 1)
	f.sessions.hang.Store(true)
	before := f.sessions.attempts.Load()

	began := time.Now()
	assert.Equal(t, HitAccepted, f.c.RecordHit(ctx, res.Session.SecretPath))
	assert.Less(t, time.Since(began), 500*time.Millisecond)
	assert.Equal(t, int64(1), f.sessions.attempts.Load()-before, "hit writes are not retried")
	assert.False(t, f.c.Healthy())

	// the next write carries the missed count
	f.sessions.hang.Store(false)
	assert.Equal(t, HitAccepted, f.c.RecordHit(ctx, res.Session.SecretPath))
	assert.True(t, f.c.Healthy())
	assert.Equal(t, int64(2), f.sessions.stored().RequestCount)
}

func TestCoordinator_TokenFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	f.tokens.fail.Store(true)

	_, err := f.c.Start(ctx, StartInput{RequesterID: 1})
	require.ErrorIs(t, err, ErrTokenUnavailable)

	_, ok := f.c.Status()
	assert.False(t, ok)
	assert.Nil(t, f.sessions.stored())

	f.tokens.fail.Store(false)
	start(t, f.c, 1)
	start(t, f.c, 2)

	f.tokens.fail.Store(true)
	res := f.c.End(ctx, 1)
	require.Equal(t, EndKindEnded, res.Kind)
	assert.Nil(t, res.Promoted)
	assert.Equal(t, 1, f.c.QueuePosition(2), "head stays queued when promotion fails")

	// the next start retries the head first
	f.tokens.fail.Store(false)
	late := start(t, f.c, 3)
	assert.Equal(t, StartKindQueued, late.Kind)
	assert.Equal(t, 1, late.Position)

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, int64(2), snap.OwnerID)
}

func TestCoordinator_RecoverResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	stored := &models.Session{
		ID:           "ss-recovered",
		OwnerID:      7,
		SecretPath:   "/target_ffffffffffffffffffffffffffffffff",
		RequestCount: 41,
		StartTime:    time.Now().Add(-10 * time.Second),
		Duration:     time.Minute,
		Domain:       "https://traffic.example",
		Status:       models.SessionStatusActive,
		Generation:   9,
	}
	require.NoError(t, f.sessions.Save(ctx, stored))

	require.NoError(t, f.c.Recover(ctx))

	snap, ok := f.c.Status()
	require.True(t, ok)
	assert.Equal(t, "ss-recovered", snap.SessionID)
	assert.Equal(t, int64(41), snap.RequestCount)

	assert.Equal(t, HitAccepted, f.c.RecordHit(ctx, stored.SecretPath))

	f.c.End(ctx, 7)
	res := start(t, f.c, 8)
	assert.Greater(t, res.Session.Generation, uint64(9))
}

func TestCoordinator_RecoverExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	stored := &models.Session{
		ID:           "ss-old",
		OwnerID:      7,
		SecretPath:   "/target_eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee",
		RequestCount: 12,
		StartTime:    time.Now().Add(-time.Hour),
		Duration:     time.Minute,
		Status:       models.SessionStatusActive,
		Generation:   2,
	}
	require.NoError(t, f.sessions.Save(ctx, stored))

	require.NoError(t, f.c.Recover(ctx))

	_, ok := f.c.Status()
	assert.False(t, ok)
	assert.Nil(t, f.sessions.stored())

	recs := f.history.all()
	require.Len(t, recs, 1)
	assert.Equal(t, models.EndReasonExpired, recs[0].Reason)
	assert.Equal(t, int64(12), recs[0].TotalRequests)
	assert.True(t, recs[0].EndTime.Equal(stored.EndsAt()))
	assert.Equal(t, 1, f.notifier.endedCount())
}

func TestCoordinator_RecoverAlreadyFinalized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	stored := &models.Session{
		ID:         "ss-done",
		OwnerID:    7,
		SecretPath: "/target_dddddddddddddddddddddddddddddddd",
		StartTime:  time.Now().Add(-30 * time.Second),
		Duration:   time.Minute,
		Status:     models.SessionStatusActive,
	}
	require.NoError(t, f.sessions.Save(ctx, stored))
	require.NoError(t, f.history.Append(ctx, models.NewHistoryRecord(stored, time.Now(), models.EndReasonOwner)))

	require.NoError(t, f.c.Recover(ctx))

	_, ok := f.c.Status()
	assert.False(t, ok)
	assert.Nil(t, f.sessions.stored())
	assert.Len(t, f.history.all(), 1, "no duplicate history entry")
}

func TestCoordinator_RecoverLoadError(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	f.sessions.fail.Store(true)

	assert.Error(t, f.c.Recover(context.Background()))
	assert.False(t, f.c.Healthy())
}

func TestCoordinator_CloseKeepsStoredSession(t *testing.T) {
	f := newFixture(t, time.Minute, 10*time.Millisecond)

	res := start(t, f.c, 1)
	f.c.Close()

	stored := f.sessions.stored()
	require.NotNil(t, stored)
	assert.Equal(t, res.Session.ID, stored.ID)
	assert.Empty(t, f.history.all())

	_, err := f.c.Start(context.Background(), StartInput{RequesterID: 2})
	assert.ErrorIs(t, err, ErrCoordinatorClosed)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vogiaan1904/trafficroom/internal/models"
)

var errStoreDown = errors.New("store down")

type memSessionRepo struct {
	mu       sync.Mutex
	ss       *models.Session
	saves    int
	fail     atomic.Bool
	hang     atomic.Bool
	attempts atomic.Int64
}

func (r *memSessionRepo) Save(ctx context.Context, ss *models.Session) error {
	r.attempts.Add(1)
	if r.hang.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	if r.fail.Load() {
		return errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ss
	r.ss = &cp
	r.saves++
	return nil
}

func (r *memSessionRepo) Load(_ context.Context) (*models.Session, error) {
	if r.fail.Load() {
		return nil, errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ss == nil {
		return nil, nil
	}
	cp := *r.ss
	return &cp, nil
}

func (r *memSessionRepo) Clear(_ context.Context) error {
	if r.fail.Load() {
		return errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ss = nil
	return nil
}

func (r *memSessionRepo) stored() *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ss
}

type memHistoryRepo struct {
	mu      sync.Mutex
	recs    []models.HistoryRecord
	results map[int64]models.HistoryRecord
	fail    atomic.Bool
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{results: map[int64]models.HistoryRecord{}}
}

func (r *memHistoryRepo) Append(_ context.Context, rec models.HistoryRecord) error {
	if r.fail.Load() {
		return errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	r.results[rec.OwnerID] = rec
	return nil
}

func (r *memHistoryRepo) List(_ context.Context) ([]models.HistoryRecord, error) {
	if r.fail.Load() {
		return nil, errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.HistoryRecord{}, r.recs...), nil
}

func (r *memHistoryRepo) Reset(_ context.Context) error {
	if r.fail.Load() {
		return errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = nil
	return nil
}

func (r *memHistoryRepo) LastResult(_ context.Context, ownerID int64) (*models.HistoryRecord, error) {
	if r.fail.Load() {
		return nil, errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.results[ownerID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memHistoryRepo) all() []models.HistoryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.HistoryRecord{}, r.recs...)
}

type memUserRepo struct {
	mu   sync.Mutex
	ids  map[int64]struct{}
	fail atomic.Bool
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{ids: map[int64]struct{}{}}
}

func (r *memUserRepo) Add(_ context.Context, id int64) error {
	if r.fail.Load() {
		return errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
	return nil
}

func (r *memUserRepo) List(_ context.Context) ([]int64, error) {
	if r.fail.Load() {
		return nil, errStoreDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	return ids, nil
}

type seqTokens struct {
	n    atomic.Int64
	fail atomic.Bool
}

func (g *seqTokens) Generate() (string, error) {
	if g.fail.Load() {
		return "", errors.New("entropy exhausted")
	}
	n := g.n.Add(1)
	return fmt.Sprintf("/target_%032x", n), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	started  []models.Session
	queued   []models.QueueEntry
	statuses []models.StatusUpdate
	ended    []models.HistoryRecord
	resets   [][]int64
}

func (n *recordingNotifier) SessionStarted(_ context.Context, ss models.Session) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, ss)
	return nil
}

func (n *recordingNotifier) SessionQueued(_ context.Context, e models.QueueEntry, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queued = append(n.queued, e)
	return nil
}

func (n *recordingNotifier) StatusUpdate(_ context.Context, upd models.StatusUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, upd)
	return nil
}

func (n *recordingNotifier) SessionEnded(_ context.Context, rec models.HistoryRecord, _ int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, rec)
	return nil
}

func (n *recordingNotifier) RankingReset(_ context.Context, ids []int64, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, ids)
	return nil
}

func (n *recordingNotifier) statusUpdates() []models.StatusUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.StatusUpdate{}, n.statuses...)
}

func (n *recordingNotifier) endedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.ended)
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vogiaan1904/trafficroom/internal/models"
	repo "github.com/vogiaan1904/trafficroom/internal/repository/redis"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

// RankingService owns the history log. All history writes go through its
// mutex so appends and resets never interleave.
type RankingService struct {
	history repo.HistoryRepository
	users   repo.UserRepository
	l       logger.Logger

	mu sync.Mutex
}

func NewRankingService(history repo.HistoryRepository, users repo.UserRepository, l logger.Logger) *RankingService {
	return &RankingService{
		history: history,
		users:   users,
		l:       l,
	}
}

func (s *RankingService) Append(ctx context.Context, rec models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Append(ctx, rec)
}

// TopN orders by TotalRequests descending, then by earliest EndTime. A
// non-positive n returns the whole ranking.
func (s *RankingService) TopN(ctx context.Context, n int) ([]models.HistoryRecord, error) {
	recs, err := s.history.List(ctx)
	if err != nil {
		s.l.Errorf(ctx, "service.RankingService.TopN: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	sortRanking(recs)

	if n > 0 && len(recs) > n {
		recs = recs[:n]
	}

	return recs, nil
}

// ResetAll clears the history log and returns every known user id. The user
// registry itself is left untouched.
func (s *RankingService) ResetAll(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.history.Reset(ctx); err != nil {
		s.l.Errorf(ctx, "service.RankingService.ResetAll: %v", err)
		return nil, fmt.Errorf("failed to reset history: %w", err)
	}

	ids, err := s.users.List(ctx)
	if err != nil {
		s.l.Errorf(ctx, "service.RankingService.ResetAll: %v", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	s.l.Infof(ctx, "Ranking reset, %d known users", len(ids))

	return ids, nil
}

func (s *RankingService) LastResult(ctx context.Context, ownerID int64) (*models.HistoryRecord, error) {
	return s.history.LastResult(ctx, ownerID)
}

func sortRanking(recs []models.HistoryRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].TotalRequests != recs[j].TotalRequests {
			return recs[i].TotalRequests > recs[j].TotalRequests
		}
		return recs[i].EndTime.Before(recs[j].EndTime)
	})
}

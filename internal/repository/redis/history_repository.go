package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/trafficroom/internal/models"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

type redisHistoryRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisHistoryRepository(cli *redis.Client, l logger.Logger) HistoryRepository {
	return &redisHistoryRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisHistoryRepository) Append(ctx context.Context, rec models.HistoryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	// MULTI/EXEC so the log entry and the per-owner result land together
	pipe := r.cli.TxPipeline()
	pipe.RPush(ctx, historyKey, data)
	pipe.Set(ctx, resultKey(rec.OwnerID), data, 0)

	_, err = pipe.Exec(ctx)
	if isWrongType(err) {
		r.l.Warnf(ctx, "redisHistoryRepository.Append: replacing history key of wrong type: %v", err)
		_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, historyKey)
			pipe.RPush(ctx, historyKey, data)
			pipe.Set(ctx, resultKey(rec.OwnerID), data, 0)
			return nil
		})
	}
	if err != nil {
		r.l.Errorf(ctx, "redisHistoryRepository.Append: %v", err)
		return err
	}

	r.l.Debugf(ctx, "History record appended session_id=%s total_requests=%d", rec.SessionID, rec.TotalRequests)

	return nil
}

func (r *redisHistoryRepository) List(ctx context.Context) ([]models.HistoryRecord, error) {
	raw, err := r.cli.LRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.HistoryRecord{}, nil
		}
		if isWrongType(err) {
			r.l.Warnf(ctx, "redisHistoryRepository.List: reading history key of wrong type as empty: %v", err)
			return []models.HistoryRecord{}, nil
		}

		r.l.Errorf(ctx, "redisHistoryRepository.List: %v", err)
		return nil, err
	}

	recs := make([]models.HistoryRecord, 0, len(raw))
	for i, item := range raw {
		var rec models.HistoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			r.l.Warnf(ctx, "redisHistoryRepository.List: skipping unreadable entry index=%d: %v", i, err)
			continue
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

func (r *redisHistoryRepository) Reset(ctx context.Context) error {
	if err := r.cli.Del(ctx, historyKey).Err(); err != nil {
		r.l.Errorf(ctx, "redisHistoryRepository.Reset: %v", err)
		return err
	}

	r.l.Infof(ctx, "History log reset")

	return nil
}

func (r *redisHistoryRepository) LastResult(ctx context.Context, ownerID int64) (*models.HistoryRecord, error) {
	data, err := r.cli.Get(ctx, resultKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if isWrongType(err) {
			r.l.Warnf(ctx, "redisHistoryRepository.LastResult: discarding result key of wrong type owner_id=%d", ownerID)
			return nil, nil
		}

		r.l.Errorf(ctx, "redisHistoryRepository.LastResult: %v", err)
		return nil, err
	}

	var rec models.HistoryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		r.l.Warnf(ctx, "redisHistoryRepository.LastResult: discarding unreadable result owner_id=%d: %v", ownerID, err)
		return nil, nil
	}

	return &rec, nil
}

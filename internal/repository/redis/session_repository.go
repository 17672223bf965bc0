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

type redisSessionRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisSessionRepository(cli *redis.Client, l logger.Logger) SessionRepository {
	return &redisSessionRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisSessionRepository) Save(ctx context.Context, ss *models.Session) error {
	data, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.cli.Set(ctx, activeSessionKey, data, 0).Err(); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Save: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Active session saved session_id=%s request_count=%d", ss.ID, ss.RequestCount)

	return nil
}

func (r *redisSessionRepository) Load(ctx context.Context) (*models.Session, error) {
	data, err := r.cli.Get(ctx, activeSessionKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if isWrongType(err) {
			r.l.Warnf(ctx, "redisSessionRepository.Load: discarding session key of wrong type: %v", err)
			return nil, nil
		}

		r.l.Errorf(ctx, "redisSessionRepository.Load: %v", err)
		return nil, err
	}

	var ss models.Session
	if err := json.Unmarshal(data, &ss); err != nil {
		r.l.Warnf(ctx, "redisSessionRepository.Load: discarding unreadable session record: %v", err)
		return nil, nil
	}

	if ss.SecretPath == "" || ss.Duration <= 0 {
		r.l.Warnf(ctx, "redisSessionRepository.Load: discarding incomplete session record session_id=%s", ss.ID)
		return nil, nil
	}

	return &ss, nil
}

func (r *redisSessionRepository) Clear(ctx context.Context) error {
	if err := r.cli.Del(ctx, activeSessionKey).Err(); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Clear: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Active session cleared")

	return nil
}

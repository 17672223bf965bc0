package repository

import (
	"context"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
)

type redisUserRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisUserRepository(cli *redis.Client, l logger.Logger) UserRepository {
	return &redisUserRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisUserRepository) Add(ctx context.Context, userID int64) error {
	member := strconv.FormatInt(userID, 10)
	added, err := r.cli.SAdd(ctx, usersKey, member).Result()
	if isWrongType(err) {
		r.l.Warnf(ctx, "redisUserRepository.Add: replacing users key of wrong type: %v", err)
		_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, usersKey)
			pipe.SAdd(ctx, usersKey, member)
			return nil
		})
		added = 1
	}
	if err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Add: %v", err)
		return err
	}

	if added > 0 {
		r.l.Debugf(ctx, "User registered user_id=%d", userID)
	}

	return nil
}

// List returns ids in ascending order.
func (r *redisUserRepository) List(ctx context.Context) ([]int64, error) {
	members, err := r.cli.SMembers(ctx, usersKey).Result()
	if isWrongType(err) {
		r.l.Warnf(ctx, "redisUserRepository.List: reading users key of wrong type as empty: %v", err)
		return []int64{}, nil
	}
	if err != nil {
		r.l.Errorf(ctx, "redisUserRepository.List: %v", err)
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			r.l.Warnf(ctx, "redisUserRepository.List: skipping malformed member %q", m)
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

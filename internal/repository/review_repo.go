package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"coin-ledger/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ReviewQueue holds transactions escalated for manual review. The admin
// tooling around the ledger drains it; the core only enqueues.
type ReviewQueue interface {
	Enqueue(ctx context.Context, rc *domain.ReviewCase) error
	Pending(ctx context.Context, limit int) ([]*domain.ReviewCase, error)
}

const (
	reviewPendingKey = "ledger:reviews:pending"
	reviewCaseKey    = "ledger:review:%s"
)

type redisReviewQueue struct {
	rdb *redis.Client
}

func NewRedisReviewQueue(rdb *redis.Client) ReviewQueue {
	return &redisReviewQueue{rdb: rdb}
}

func (q *redisReviewQueue) Enqueue(ctx context.Context, rc *domain.ReviewCase) error {
	payload, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("failed to marshal review case: %w", err)
	}
	key := fmt.Sprintf(reviewCaseKey, rc.ReviewID)
	if err := q.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store review case: %w", err)
	}
	if err := q.rdb.RPush(ctx, reviewPendingKey, rc.ReviewID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue review case: %w", err)
	}
	return nil
}

func (q *redisReviewQueue) Pending(ctx context.Context, limit int) ([]*domain.ReviewCase, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := q.rdb.LRange(ctx, reviewPendingKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	cases := make([]*domain.ReviewCase, 0, len(ids))
	for _, id := range ids {
		raw, err := q.rdb.Get(ctx, fmt.Sprintf(reviewCaseKey, id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rc domain.ReviewCase
		if err := json.Unmarshal([]byte(raw), &rc); err != nil {
			return nil, err
		}
		cases = append(cases, &rc)
	}
	return cases, nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache keeps computed analytics reports between requests. Reports are
// stored under the form's generation; Invalidate bumps the generation so a
// report computed before a write can never be served after it. Get returns
// (nil, nil) on a miss.
type ReportCache interface {
	Generation(ctx context.Context, formID string) (int64, error)
	Get(ctx context.Context, formID string, gen int64) (*AnalyticsReport, error)
	Set(ctx context.Context, formID string, gen int64, report *AnalyticsReport) error
	Invalidate(ctx context.Context, formID string) error
}

const (
	reportKeyPrefix     = "formpulse:analytics:"
	generationKeyPrefix = "formpulse:analytics-gen:"
)

func reportKey(formID string, gen int64) string {
	return reportKeyPrefix + formID + ":" + strconv.FormatInt(gen, 10)
}

func generationKey(formID string) string { return generationKeyPrefix + formID }

type RedisReportCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisReportCache(rdb redis.Cmdable, ttl time.Duration) *RedisReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisReportCache{rdb: rdb, ttl: ttl}
}

// Generation reads the form's current generation; an unset counter is 0.
func (c *RedisReportCache) Generation(ctx context.Context, formID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(formID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (c *RedisReportCache) Get(ctx context.Context, formID string, gen int64) (*AnalyticsReport, error) {
	b, err := c.rdb.Get(ctx, reportKey(formID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rep AnalyticsReport
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &rep, nil
}

func (c *RedisReportCache) Set(ctx context.Context, formID string, gen int64, report *AnalyticsReport) error {
	b, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.rdb.Set(ctx, reportKey(formID, gen), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate moves the form to a new generation. Reports under older
// generations are left to expire.
func (c *RedisReportCache) Invalidate(ctx context.Context, formID string) error {
	if err := c.rdb.Incr(ctx, generationKey(formID)).Err(); err != nil {
		return fmt.Errorf("redis incr generation: %w", err)
	}
	return nil
}

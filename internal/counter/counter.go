// Package counter is the volatile counter store backing admission decisions:
// how many times a job was completed today, and when a user last started a
// job. Keys live in Redis with short TTLs; a cold or flushed cache reads as
// zero/none and only degrades fairness, never the ledger.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thegunner2008/taskpay-be/internal/timeint"
	"github.com/thegunner2008/taskpay-be/shared/redisdb"
)

// Day counters survive one midnight rollover so late finishers still count,
// then expire on their own.
const dayCountTTL = 48 * time.Hour

// Start timestamps only matter for the synchronous timeout check.
const lastStartTTL = 24 * time.Hour

// Store tracks per-job day counts and per-user start timestamps.
type Store struct {
	rdb *redis.Client
	now func() time.Time
}

// NewStore creates a counter store on top of the shared Redis client.
func NewStore(client *redisdb.Client) *Store {
	return &Store{
		rdb: client.GetRDB(),
		now: time.Now,
	}
}

func (s *Store) dayCountKey(jobID int64) string {
	return fmt.Sprintf("count:job:%d:%s", jobID, timeint.DayKey(s.now()))
}

func lastStartKey(userID int64) string {
	return fmt.Sprintf("start:user:%d", userID)
}

// TodayCount returns how many times the job was completed today. A missing
// key reads as zero.
func (s *Store) TodayCount(ctx context.Context, jobID int64) (int64, error) {
	val, err := s.rdb.Get(ctx, s.dayCountKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read day count: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed day count for job %d: %w", jobID, err)
	}
	return count, nil
}

// IncrTodayCount advances the job's day count by delta.
func (s *Store) IncrTodayCount(ctx context.Context, jobID int64, delta int64) error {
	key := s.dayCountKey(jobID)
	count, err := s.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return fmt.Errorf("failed to increment day count: %w", err)
	}
	if count == delta {
		s.rdb.Expire(ctx, key, dayCountTTL)
	}
	return nil
}

// LastStart returns when the user last started a job, or ok=false if no start
// was recorded (or the key expired).
func (s *Store) LastStart(ctx context.Context, userID int64) (time.Time, bool, error) {
	val, err := s.rdb.Get(ctx, lastStartKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last start: %w", err)
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed last start for user %d: %w", userID, err)
	}
	return time.Unix(unix, 0), true, nil
}

// SetLastStart records that the user started a job at the given time.
func (s *Store) SetLastStart(ctx context.Context, userID int64, at time.Time) error {
	err := s.rdb.Set(ctx, lastStartKey(userID), strconv.FormatInt(at.Unix(), 10), lastStartTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to record last start: %w", err)
	}
	return nil
}

// Snapshot dumps every counter key and its value for operator inspection.
func (s *Store) Snapshot(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string)

	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan counter keys: %w", err)
		}

		for _, key := range keys {
			val, err := s.rdb.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read counter key %s: %w", key, err)
			}
			values[key] = val
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return values, nil
}

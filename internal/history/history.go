package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("history redis unavailable")

// Record is one persisted summary of a finished workflow instance.
type Record struct {
	InstanceID      string    `json:"instance_id"`
	Workflow        string    `json:"workflow"`
	FinalState      string    `json:"final_state"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	ErrorCount      int       `json:"error_count"`
	RetryCount      int       `json:"retry_count"`
	CompletionRatio float64   `json:"completion_ratio"`
}

// Store persists workflow summaries in per-workflow Redis lists, newest first,
// trimmed to the retention bound on every write.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention int
}

func NewStore(redisClient redis.UniversalClient, prefix string, retention int) *Store {
	if prefix == "" {
		prefix = "awf"
	}
	if retention <= 0 {
		retention = 100
	}
	return &Store{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *Store) key(workflow string) string {
	return s.prefix + ":history:" + workflow
}

// Save pushes the record onto its workflow's list and trims the list to the
// retention bound in one pipeline.
func (s *Store) Save(ctx context.Context, record Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	key := s.key(record.Workflow)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, encoded)
		pipe.LTrim(ctx, key, 0, int64(s.retention-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// List returns up to limit records for the workflow, newest first. A limit of
// zero or less returns everything retained. Records that fail to decode are
// skipped rather than failing the whole read.
func (s *Store) List(ctx context.Context, workflow string, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := s.redis.LRange(ctx, s.key(workflow), 0, stop).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var record Record
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// Purge removes every retained record for the workflow.
func (s *Store) Purge(ctx context.Context, workflow string) error {
	if err := s.redis.Del(ctx, s.key(workflow)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

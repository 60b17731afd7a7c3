package worker

// Jobs and journal entries that exhaust their retries land in a Redis list
// per source: dlq:{queue}. Entries are kept for manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

func SendToDLQ(ctx context.Context, rdb *redis.Client, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(payload))
	}
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: moved to dead letter queue")
}

func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// PeekDLQ returns up to n of the most recent entries without removing them.
func PeekDLQ(ctx context.Context, rdb *redis.Client, queue string, n int64) ([]DLQEntry, error) {
	raw, err := rdb.LRange(ctx, DLQPrefix+queue, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DLQEntry, 0, len(raw))
	for _, r := range raw {
		var e DLQEntry
		if err := json.Unmarshal([]byte(r), &e); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

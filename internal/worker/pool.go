package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmail = "jobs:email"

	JobShiftReport = "reporte_cierre"

	maxJobAttempts = 3
	popTimeout     = 5 * time.Second
)

// Job is the envelope of every queued task.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one job payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues jobs into Redis lists consumed by the pool via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueShiftReport queues the mailing of a shift close report.
func (d *Dispatcher) EnqueueShiftReport(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobShiftReport, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("worker: marshal %s payload: %w", jobType, err)
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	queues   []string
	backoff  func(attempt int) time.Duration
	wg       sync.WaitGroup
}

func NewPool(rdb *redis.Client, handlers map[string]Handler) *Pool {
	return &Pool{
		rdb:      rdb,
		handlers: handlers,
		queues:   []string{QueueEmail},
		backoff:  func(attempt int) time.Duration { return time.Duration(1<<uint(attempt-1)) * time.Second },
	}
}

// Start launches n workers. They stop when ctx is cancelled; Wait blocks
// until they have.
func (p *Pool) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Int("workers", n).Msg("worker pool started")
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
		}
		// blocks up to popTimeout, then loops to check ctx
		result, err := p.rdb.BRPop(ctx, popTimeout, p.queues...).Result()
		if err != nil || len(result) < 2 {
			continue
		}
		p.process(ctx, result[0], result[1])
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("worker: undecodable job")
		SendToDLQ(ctx, p.rdb, queue, "desconocido", json.RawMessage(raw), "json: "+err.Error(), 0)
		return
	}
	handler, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Msg("worker: no handler for job type")
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "sin handler", 0)
		return
	}

	attempts := 0
	err := withRetry(ctx, maxJobAttempts, p.backoff, func(int) error {
		attempts++
		return handler(ctx, job.Payload)
	})
	if err != nil {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), attempts)
		return
	}
	log.Info().Str("type", job.Type).Int("attempts", attempts).Msg("worker: job done")
}

// withRetry calls fn up to maxAttempts times, waiting backoff(i) before
// attempt i (i ≥ 1).
func withRetry(ctx context.Context, maxAttempts int, backoff func(int) time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(i)):
			}
		}
		if lastErr = fn(i); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

package worker

// retry_cron.go re-registers the cash movements of accepted invoices whose
// movement failed at submit time (journal movimiento_estado = 'pendiente').
// Calls go through the backend breaker so a downed backend is not hammered.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cajapos/internal/infra"
	"cajapos/internal/model"
	"cajapos/internal/pos"
	"cajapos/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueMovimientos = "journal:movimientos"

	MaxMovementRetries = 6
	retryTickInterval  = 30 * time.Second
	retryBatchSize     = 10
	maxRetryBackoff    = 30 * time.Minute
)

// MovementRetrier is satisfied by *pos.InvoiceSubmitter.
type MovementRetrier interface {
	RetryMovement(ctx context.Context, rec *model.EnvioFactura) error
}

type RetryCronConfig struct {
	Journal  repository.EnvioRepository
	Retrier  MovementRetrier
	Breaker  *infra.Breaker
	RDB      *redis.Client
	Interval time.Duration
	Now      func() time.Time
}

// StartRetryCron ticks every Interval until ctx is cancelled.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = retryTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		log.Info().Dur("interval", cfg.Interval).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Breaker.State() == infra.BreakerOpen {
		log.Debug().Msg("retry_cron: breaker open, skipping tick")
		return
	}

	pending, err := cfg.Journal.ListPendingMovements(ctx, cfg.Now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending movements")
		return
	}
	if len(pending) == 0 {
		return
	}
	log.Info().Int("count", len(pending)).Msg("retry_cron: retrying pending movements")

	for i := range pending {
		rec := &pending[i]
		if cfg.Breaker.State() == infra.BreakerOpen {
			log.Debug().Msg("retry_cron: breaker opened mid-batch, stopping")
			return
		}

		var shiftGone error
		err := cfg.Breaker.Do(func() error {
			err := cfg.Retrier.RetryMovement(ctx, rec)
			if errors.Is(err, pos.ErrMovementShiftChanged) {
				shiftGone = err
				return nil
			}
			return err
		})
		if shiftGone != nil {
			log.Error().
				Int64("factura_id", derefID(rec.FacturaID)).
				Msg("retry_cron: invoice shift already closed, moving to DLQ")
			deadLetter(ctx, cfg, rec, shiftGone.Error())
			continue
		}
		if err == nil {
			log.Info().
				Int64("factura_id", derefID(rec.FacturaID)).
				Int("retries", rec.RetryCount).
				Msg("retry_cron: movement registered after retry")
			continue
		}
		scheduleNext(ctx, cfg, rec, err)
	}
}

func scheduleNext(ctx context.Context, cfg RetryCronConfig, rec *model.EnvioFactura, cause error) {
	rec.RetryCount++
	msg := cause.Error()
	rec.LastError = &msg

	if rec.RetryCount >= MaxMovementRetries {
		log.Error().
			Int64("factura_id", derefID(rec.FacturaID)).
			Int("retries", rec.RetryCount).
			Msg("retry_cron: max retries exceeded, moving to DLQ")
		deadLetter(ctx, cfg, rec, fmt.Sprintf("max retries (%d) exceeded: %s", MaxMovementRetries, msg))
		return
	}

	next := cfg.Now().Add(computeRetryBackoff(rec.RetryCount))
	rec.NextRetryAt = &next
	log.Warn().
		Int64("factura_id", derefID(rec.FacturaID)).
		Int("retry_count", rec.RetryCount).
		Time("next_retry_at", next).
		Msg("retry_cron: movement retry failed, scheduled next attempt")

	if err := cfg.Journal.Update(ctx, rec); err != nil {
		log.Error().Err(err).Str("envio_id", rec.ID.String()).Msg("retry_cron: journal update failed")
	}
}

// deadLetter marks the movement failed for good, parks it in the DLQ and
// persists the journal entry.
func deadLetter(ctx context.Context, cfg RetryCronConfig, rec *model.EnvioFactura, reason string) {
	rec.MovimientoEstado = model.MovimientoError
	rec.NextRetryAt = nil
	rec.LastError = &reason

	payload, _ := json.Marshal(map[string]any{
		"envio_id":   rec.ID,
		"factura_id": rec.FacturaID,
		"tipo":       rec.MovimientoTipo,
		"monto":      rec.Total,
		"turno_id":   rec.TurnoID,
	})
	SendToDLQ(ctx, cfg.RDB, QueueMovimientos, "movimiento", payload, reason, rec.RetryCount)

	if err := cfg.Journal.Update(ctx, rec); err != nil {
		log.Error().Err(err).Str("envio_id", rec.ID.String()).Msg("retry_cron: journal update failed")
	}
}

// computeRetryBackoff doubles from 30s per attempt, capped at 30 minutes.
func computeRetryBackoff(retries int) time.Duration {
	d := retryTickInterval
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

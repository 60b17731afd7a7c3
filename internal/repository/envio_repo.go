package repository

import (
	"context"
	"errors"
	"time"

	"cajapos/internal/model"

	"gorm.io/gorm"
)

// EnvioRepository persists the invoice submission journal.
type EnvioRepository interface {
	Create(ctx context.Context, e *model.EnvioFactura) error
	Update(ctx context.Context, e *model.EnvioFactura) error
	// FindByIdempotencyKey returns (nil, nil) when no attempt used the key.
	FindByIdempotencyKey(ctx context.Context, key string) (*model.EnvioFactura, error)
	FindByFacturaID(ctx context.Context, facturaID int64) (*model.EnvioFactura, error)
	ListPendingMovements(ctx context.Context, now time.Time, limit int) ([]model.EnvioFactura, error)
	ListRecent(ctx context.Context, limit int) ([]model.EnvioFactura, error)
}

type envioRepo struct{ db *gorm.DB }

func NewEnvioRepository(db *gorm.DB) EnvioRepository { return &envioRepo{db: db} }

func (r *envioRepo) Create(ctx context.Context, e *model.EnvioFactura) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *envioRepo) Update(ctx context.Context, e *model.EnvioFactura) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *envioRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.EnvioFactura, error) {
	var e model.EnvioFactura
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *envioRepo) FindByFacturaID(ctx context.Context, facturaID int64) (*model.EnvioFactura, error) {
	var e model.EnvioFactura
	err := r.db.WithContext(ctx).Where("factura_id = ?", facturaID).First(&e).Error
	return &e, err
}

// ListPendingMovements returns accepted invoices whose movement registration
// is due for another attempt, oldest first.
func (r *envioRepo) ListPendingMovements(ctx context.Context, now time.Time, limit int) ([]model.EnvioFactura, error) {
	var out []model.EnvioFactura
	err := r.db.WithContext(ctx).
		Where("estado = ? AND movimiento_estado = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			model.EnvioAceptada, model.MovimientoPendiente, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *envioRepo) ListRecent(ctx context.Context, limit int) ([]model.EnvioFactura, error) {
	var out []model.EnvioFactura
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

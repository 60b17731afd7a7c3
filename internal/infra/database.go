package infra

import (
	"fmt"
	"time"

	"cajapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the local journal database. The agent owns only the
// submission journal, so its schema is kept with AutoMigrate.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.EnvioFactura{}); err != nil {
		return fmt.Errorf("database: AutoMigrate: %w", err)
	}
	// Pending movements are polled by the retry cron.
	const idx = `CREATE INDEX IF NOT EXISTS idx_envios_movimiento_pendiente
		ON envios_factura (next_retry_at) WHERE movimiento_estado = 'pendiente'`
	if err := db.Exec(idx).Error; err != nil {
		return fmt.Errorf("database: pending index: %w", err)
	}
	return nil
}

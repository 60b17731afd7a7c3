package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EnvioFactura journals one invoice submission attempt made by this terminal.
// Estado: "enviando" | "aceptada" | "rechazada" | "error"
type EnvioFactura struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	IdempotencyKey     string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	Estado             string          `gorm:"type:varchar(20);not null;default:'enviando'"`
	FacturaID          *int64          `gorm:"index"`
	NCF                *string         `gorm:"type:varchar(30)"`
	CodigoAutorizacion *string         `gorm:"type:varchar(60)"`
	ClienteID          string          `gorm:"type:varchar(40);not null"`
	ClienteNombre      string          `gorm:"type:varchar(120)"`
	EsProveedor        bool            `gorm:"not null;default:false"`
	MetodoPago         string          `gorm:"type:varchar(20);not null"`
	Total              decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descuento          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ItbisTotal         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Payload            string          `gorm:"type:text"`
	Error              *string

	// Shift the invoice was billed in; its movement belongs to that shift only.
	TurnoID     *int64 `gorm:"index"`
	TurnoInicio *time.Time

	// MovimientoEstado: "no_aplica" | "registrado" | "pendiente" | "error"
	MovimientoEstado string `gorm:"type:varchar(20);not null;default:'no_aplica'"`
	MovimientoTipo   string `gorm:"type:varchar(10)"`
	RetryCount       int    `gorm:"not null;default:0"`
	NextRetryAt      *time.Time
	LastError        *string
	PDFPath          *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EnvioFactura) TableName() string { return "envios_factura" }

const (
	EnvioEnviando  = "enviando"
	EnvioAceptada  = "aceptada"
	EnvioRechazada = "rechazada"
	EnvioError     = "error"

	MovimientoNoAplica   = "no_aplica"
	MovimientoRegistrado = "registrado"
	MovimientoPendiente  = "pendiente"
	MovimientoError      = "error"
)

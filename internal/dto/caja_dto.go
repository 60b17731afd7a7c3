package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	MontoInicial decimal.Decimal `json:"monto_inicial" validate:"required,gt=0"`
}

type CerrarCajaRequest struct {
	MontoEfectivo decimal.Decimal `json:"monto_efectivo" validate:"min=0"`
	MontoTarjeta  decimal.Decimal `json:"monto_tarjeta"  validate:"min=0"`
	Observaciones string          `json:"observaciones"  validate:"max=500"`
	Confirmar     bool            `json:"confirmar"`
	EmailReporte  string          `json:"email_reporte"  validate:"omitempty,email"`
}

type MovimientoManualRequest struct {
	Tipo        string          `json:"tipo"        validate:"required,oneof=venta gasto"`
	MetodoPago  string          `json:"metodo_pago" validate:"required,oneof=efectivo tarjeta transferencia credito"`
	Monto       decimal.Decimal `json:"monto"       validate:"required,gt=0"`
	Descripcion string          `json:"descripcion" validate:"required,min=3"`
}

type ConciliacionQuery struct {
	Efectivo string `form:"efectivo"`
	Tarjeta  string `form:"tarjeta"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DiferenciaResponse struct {
	Esperado   decimal.Decimal `json:"esperado"`
	Contado    decimal.Decimal `json:"contado"`
	Diferencia decimal.Decimal `json:"diferencia"`
	Estado     string          `json:"estado"` // cuadrado | sobrante | faltante
	Etiqueta   string          `json:"etiqueta"`
}

type ConciliacionResponse struct {
	Efectivo DiferenciaResponse `json:"efectivo"`
	Tarjeta  DiferenciaResponse `json:"tarjeta"`
	Total    DiferenciaResponse `json:"total"`
}

type MovimientoResponse struct {
	Tipo        string          `json:"tipo"`
	MetodoPago  string          `json:"metodo_pago"`
	Monto       decimal.Decimal `json:"monto"`
	Descripcion string          `json:"descripcion"`
	Fecha       string          `json:"fecha"`
	FacturaID   *int64          `json:"factura_id,omitempty"`
}

type EstadoCajaResponse struct {
	Abierto          bool                 `json:"abierto"`
	Cajero           string               `json:"cajero"`
	Inicio           *string              `json:"inicio"`
	Fin              *string              `json:"fin"`
	MontoInicial     decimal.Decimal      `json:"monto_inicial"`
	EfectivoEsperado decimal.Decimal      `json:"efectivo_esperado"`
	TarjetaEsperado  decimal.Decimal      `json:"tarjeta_esperado"`
	TotalFacturas    int                  `json:"total_facturas"`
	TotalFacturado   decimal.Decimal      `json:"total_facturado"`
	UltimaFacturaID  *int64               `json:"ultima_factura_id"`
	TurnoID          *int64               `json:"turno_id,omitempty"`
	Movimientos      []MovimientoResponse `json:"movimientos"`
}

type CierreCajaResponse struct {
	TurnoID         *int64               `json:"turno_id,omitempty"`
	Conciliacion    ConciliacionResponse `json:"conciliacion"`
	TotalFacturas   int                  `json:"total_facturas"`
	TotalFacturado  decimal.Decimal      `json:"total_facturado"`
	UltimaFacturaID *int64               `json:"ultima_factura_id"`
	ReportePDF      string               `json:"reporte_pdf,omitempty"`
}

package dto

import "github.com/shopspring/decimal"

// Wire types of the billing backend. Field names follow the backend's JSON
// exactly, including its mix of camelCase and snake_case.

// ─── Productos ───────────────────────────────────────────────────────────────

type ProductoBackend struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Itbis bool            `json:"itbis"`
	Stock *int            `json:"stock,omitempty"`
}

// ─── Caja ────────────────────────────────────────────────────────────────────

// BackendEnvelope is the success/error pair every caja and facturas response carries.
type BackendEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Mensaje string `json:"mensaje,omitempty"`
}

type MovimientoBackend struct {
	ID          int64           `json:"id"`
	TurnoID     int64           `json:"turno_id"`
	FacturaID   *int64          `json:"factura_id"`
	Tipo        string          `json:"tipo"`
	MetodoPago  string          `json:"metodo_pago"`
	Descripcion string          `json:"descripcion"`
	Monto       decimal.Decimal `json:"monto"`
	Fecha       string          `json:"fecha"`
}

type EstadoCajaData struct {
	Open           bool                `json:"open"`
	Start          *string             `json:"start"`
	End            *string             `json:"end"`
	Cashier        string              `json:"cashier"`
	InitialCash    decimal.Decimal     `json:"initialCash"`
	Movements      []MovimientoBackend `json:"movements"`
	Facturas       int                 `json:"facturas"`
	TotalFacturado decimal.Decimal     `json:"totalFacturado"`
	UltimaFactura  *int64              `json:"ultimaFactura"`
	TurnoID        *int64              `json:"turno_id,omitempty"`
}

type EstadoCajaBackendResponse struct {
	BackendEnvelope
	Data *EstadoCajaData `json:"data"`
}

type AbrirCajaBackendRequest struct {
	MontoInicial decimal.Decimal `json:"monto_inicial"`
}

type CerrarCajaBackendRequest struct {
	Observaciones string          `json:"observaciones"`
	MontoEfectivo decimal.Decimal `json:"monto_efectivo"`
	MontoTarjeta  decimal.Decimal `json:"monto_tarjeta"`
	MontoTotal    decimal.Decimal `json:"monto_total"`
}

type EstadisticasFacturacion struct {
	TotalFacturas   int             `json:"total_facturas"`
	TotalFacturado  decimal.Decimal `json:"total_facturado"`
	UltimaFacturaID *int64          `json:"ultima_factura_id"`
}

type CerrarCajaBackendResponse struct {
	BackendEnvelope
	TurnoID      *int64                  `json:"turno_id"`
	Estadisticas EstadisticasFacturacion `json:"estadisticas"`
}

type EstadisticasBackendResponse struct {
	BackendEnvelope
	Data EstadisticasFacturacion `json:"data"`
}

type MovimientoBackendRequest struct {
	Tipo        string          `json:"tipo"`
	MetodoPago  string          `json:"metodo_pago"`
	Monto       decimal.Decimal `json:"monto"`
	Descripcion string          `json:"descripcion"`
	FacturaID   *int64          `json:"factura_id,omitempty"`
}

// ─── Facturas ────────────────────────────────────────────────────────────────

type FacturaDetalle struct {
	ProductoID string          `json:"producto_id"`
	Cantidad   int             `json:"cantidad"`
	Precio     decimal.Decimal `json:"precio"`
	Itbis      bool            `json:"itbis"`
}

type FacturaRequest struct {
	ClienteID        string           `json:"cliente_id"`
	Total            decimal.Decimal  `json:"total"`
	Descuento        decimal.Decimal  `json:"descuento"`
	ItbisTotal       decimal.Decimal  `json:"itbis_total"`
	MetodoPago       string           `json:"metodo_pago"`
	Detalles         []FacturaDetalle `json:"detalles"`
	EsProveedor      bool             `json:"es_proveedor"`
	FechaVencimiento *string          `json:"fecha_vencimiento,omitempty"`
	MontoRecibido    *decimal.Decimal `json:"monto_recibido,omitempty"`
}

type FacturaBackendResponse struct {
	BackendEnvelope
	FacturaID          int64  `json:"factura_id"`
	NCF                string `json:"ncf"`
	CodigoAutorizacion string `json:"codigo_autorizacion"`
	Warning            string `json:"warning,omitempty"`
}

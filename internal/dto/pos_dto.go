package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AgregarLineaRequest struct {
	ProductoID string `json:"producto_id" validate:"required_without=Codigo"`
	Codigo     string `json:"codigo"      validate:"required_without=ProductoID,omitempty,min=3"`
	Cantidad   int    `json:"cantidad"    validate:"min=0"`
}

type ActualizarCantidadRequest struct {
	Cantidad int `json:"cantidad" validate:"min=0"`
}

type AjustarUltimoRequest struct {
	Delta int `json:"delta" validate:"required,oneof=-1 1"`
}

type DescuentoRequest struct {
	Monto decimal.Decimal `json:"monto" validate:"min=0"`
	Tipo  string          `json:"tipo"  validate:"required,oneof=fijo porcentaje"`
}

type ClienteRequest struct {
	ID     string `json:"id"     validate:"required"`
	Nombre string `json:"nombre" validate:"required"`
	RNC    string `json:"rnc"`
	Tipo   string `json:"tipo"   validate:"required,oneof=cliente proveedor"`
}

type PagoRequest struct {
	Metodo           string           `json:"metodo"            validate:"required,oneof=efectivo tarjeta transferencia credito"`
	MontoRecibido    *decimal.Decimal `json:"monto_recibido"`
	FechaVencimiento *string          `json:"fecha_vencimiento" validate:"omitempty,datetime=2006-01-02"`
}

type TeclasRequest struct {
	Teclas    []string `json:"teclas"     validate:"required,min=1,dive,min=1"`
	FocoTexto bool     `json:"foco_texto"`
	Fuente    string   `json:"fuente"     validate:"omitempty,oneof=ambiente manual"`
}

type EscanerManualRequest struct {
	Activo bool `json:"activo"`
}

type BuscarProductosQuery struct {
	Q string `form:"q" validate:"required,min=1"`
}

type ListarEnviosQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CodigoEscaneado struct {
	Codigo string `json:"codigo"`
	Error  string `json:"error,omitempty"`
}

type TeclasResponse struct {
	Codigos []CodigoEscaneado `json:"codigos"`
}

// EnvioResponse is one entry of the local invoice journal.
type EnvioResponse struct {
	ID               string          `json:"id"`
	Estado           string          `json:"estado"`
	FacturaID        *int64          `json:"factura_id,omitempty"`
	NCF              *string         `json:"ncf,omitempty"`
	Cliente          string          `json:"cliente"`
	MetodoPago       string          `json:"metodo_pago"`
	Total            decimal.Decimal `json:"total"`
	MovimientoEstado string          `json:"movimiento_estado"`
	Reintentos       int             `json:"reintentos"`
	Error            *string         `json:"error,omitempty"`
	TienePDF         bool            `json:"tiene_pdf"`
	Fecha            string          `json:"fecha"`
}

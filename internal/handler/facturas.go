package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/pos"
	"cajapos/internal/repository"

	"github.com/gin-gonic/gin"
)

// MovementRetrier re-registers the cash movement of an accepted invoice;
// *pos.InvoiceSubmitter implements it.
type MovementRetrier interface {
	RetryMovementForInvoice(ctx context.Context, facturaID int64) error
}

// FacturasHandler exposes the local invoice journal.
type FacturasHandler struct {
	journal repository.EnvioRepository
	retrier MovementRetrier
}

func NewFacturasHandler(journal repository.EnvioRepository, retrier MovementRetrier) *FacturasHandler {
	return &FacturasHandler{journal: journal, retrier: retrier}
}

// Listar godoc
// @Summary Lista los ultimos envios de facturas de esta terminal
// @Tags facturas
// @Produce json
// @Param limit query int false "Cantidad (max 200)"
// @Success 200 {array} dto.EnvioResponse
// @Router /v1/pos/facturas [get]
func (h *FacturasHandler) Listar(c *gin.Context) {
	var q dto.ListarEnviosQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	envios, err := h.journal.ListRecent(c.Request.Context(), q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.EnvioResponse, 0, len(envios))
	for i := range envios {
		out = append(out, envioResponse(&envios[i]))
	}
	c.JSON(http.StatusOK, out)
}

// PDF godoc
// @Summary Descarga el PDF guardado de una factura
// @Tags facturas
// @Produce application/pdf
// @Param id path int true "ID de factura"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/pos/facturas/{id}/pdf [get]
func (h *FacturasHandler) PDF(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}
	rec, err := h.journal.FindByFacturaID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.PDFPath == nil {
		writeError(c, pos.ErrPDFNotAvailable)
		return
	}
	if _, err := os.Stat(*rec.PDFPath); err != nil {
		writeError(c, pos.ErrPDFNotAvailable)
		return
	}
	c.FileAttachment(*rec.PDFPath, filepath.Base(*rec.PDFPath))
}

// ReintentarMovimiento godoc
// @Summary Reintenta registrar el movimiento de caja de una factura aceptada
// @Tags facturas
// @Produce json
// @Param id path int true "ID de factura"
// @Success 200 {object} dto.EnvioResponse
// @Failure 404 {object} apierror.APIError
// @Failure 502 {object} apierror.APIError
// @Router /v1/pos/facturas/{id}/reintentar-movimiento [post]
func (h *FacturasHandler) ReintentarMovimiento(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.retrier.RetryMovementForInvoice(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	rec, err := h.journal.FindByFacturaID(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envioResponse(rec))
}

func envioResponse(e *model.EnvioFactura) dto.EnvioResponse {
	errMsg := e.Error
	if errMsg == nil {
		errMsg = e.LastError
	}
	return dto.EnvioResponse{
		ID:               e.ID.String(),
		Estado:           e.Estado,
		FacturaID:        e.FacturaID,
		NCF:              e.NCF,
		Cliente:          e.ClienteNombre,
		MetodoPago:       e.MetodoPago,
		Total:            e.Total,
		MovimientoEstado: e.MovimientoEstado,
		Reintentos:       e.RetryCount,
		Error:            errMsg,
		TienePDF:         e.PDFPath != nil,
		Fecha:            e.CreatedAt.Format(time.RFC3339),
	}
}

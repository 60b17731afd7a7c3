package handler

import (
	"net/http"
	"path/filepath"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Estado godoc
// @Summary Estado del turno de caja
// @Tags caja
// @Produce json
// @Success 200 {object} dto.EstadoCajaResponse
// @Failure 502 {object} apierror.APIError
// @Router /v1/caja/estado [get]
func (h *CajaHandler) Estado(c *gin.Context) {
	resp, err := h.svc.Estado(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Abrir godoc
// @Summary Abre un turno con el monto inicial
// @Tags caja
// @Accept json
// @Produce json
// @Param body body dto.AbrirCajaRequest true "Datos de apertura"
// @Success 201 {object} dto.EstadoCajaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary Cierra el turno con el conteo declarado
// @Description Un conteo en cero requiere confirmar=true. Genera el reporte PDF y lo envia por correo si hay destinatarios.
// @Tags caja
// @Accept json
// @Produce json
// @Param body body dto.CerrarCajaRequest true "Conteo"
// @Success 200 {object} dto.CierreCajaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarMovimiento godoc
// @Summary Registra un movimiento manual de caja
// @Tags caja
// @Accept json
// @Produce json
// @Param body body dto.MovimientoManualRequest true "Movimiento"
// @Success 201 {object} dto.EstadoCajaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/movimientos [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoManualRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Conciliacion godoc
// @Summary Compara montos contados con lo esperado sin cerrar el turno
// @Tags caja
// @Produce json
// @Param efectivo query string false "Efectivo contado"
// @Param tarjeta query string false "Tarjeta contada"
// @Success 200 {object} dto.ConciliacionResponse
// @Router /v1/caja/conciliacion [get]
func (h *CajaHandler) Conciliacion(c *gin.Context) {
	var q dto.ConciliacionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos"))
		return
	}
	efectivo, ok1 := parseAmount(q.Efectivo)
	tarjeta, ok2 := parseAmount(q.Tarjeta)
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, apierror.New("Monto invalido"))
		return
	}
	resp, err := h.svc.Conciliacion(c.Request.Context(), efectivo, tarjeta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Estadisticas godoc
// @Summary Contadores de facturacion del turno
// @Tags caja
// @Produce json
// @Success 200 {object} pos.BillingStats
// @Router /v1/caja/estadisticas [get]
func (h *CajaHandler) Estadisticas(c *gin.Context) {
	stats, err := h.svc.EstadisticasFacturacion(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ReportePDF godoc
// @Summary Descarga el reporte PDF del ultimo cierre
// @Tags caja
// @Produce application/pdf
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/reporte/pdf [get]
func (h *CajaHandler) ReportePDF(c *gin.Context) {
	path, err := h.svc.UltimoReporte()
	if err != nil {
		writeError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// parseAmount treats an empty value as zero.
func parseAmount(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

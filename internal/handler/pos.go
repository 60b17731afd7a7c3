package handler

import (
	"context"
	"net/http"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/pos"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CatalogCache is the product lookup cache; *service.CatalogService implements it.
type CatalogCache interface {
	Invalidate(ctx context.Context) error
}

type PosHandler struct {
	term  *pos.Terminal
	cache CatalogCache
}

func NewPosHandler(term *pos.Terminal, cache CatalogCache) *PosHandler {
	return &PosHandler{term: term, cache: cache}
}

// dispatch applies a to the terminal and writes the resulting view.
func (h *PosHandler) dispatch(c *gin.Context, status int, a pos.Action) {
	view, err := h.term.Dispatch(c.Request.Context(), a)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, view)
}

// Estado godoc
// @Summary Estado actual de la venta en curso
// @Tags pos
// @Produce json
// @Success 200 {object} pos.View
// @Router /v1/pos/estado [get]
func (h *PosHandler) Estado(c *gin.Context) {
	c.JSON(http.StatusOK, h.term.View())
}

// BuscarProductos godoc
// @Summary Busca productos por nombre o codigo
// @Tags pos
// @Produce json
// @Param q query string true "Texto de busqueda"
// @Success 200 {array} pos.Product
// @Failure 422 {object} apierror.ValidationError
// @Failure 502 {object} apierror.APIError
// @Router /v1/pos/productos [get]
func (h *PosHandler) BuscarProductos(c *gin.Context) {
	var q dto.BuscarProductosQuery
	if !bindQuery(c, &q) {
		return
	}
	products, err := h.term.Search(c.Request.Context(), q.Q)
	if err != nil {
		writeError(c, err)
		return
	}
	if products == nil {
		products = []pos.Product{}
	}
	c.JSON(http.StatusOK, products)
}

// AgregarLinea godoc
// @Summary Agrega un producto al carrito por codigo o ID
// @Tags pos
// @Accept json
// @Produce json
// @Param body body dto.AgregarLineaRequest true "Producto"
// @Success 201 {object} pos.View
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/pos/carrito/lineas [post]
func (h *PosHandler) AgregarLinea(c *gin.Context) {
	var req dto.AgregarLineaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	code := req.Codigo
	if code == "" {
		code = req.ProductoID
	}
	h.dispatch(c, http.StatusCreated, pos.ScanCode{Code: code, Quantity: req.Cantidad})
}

// ActualizarCantidad godoc
// @Summary Cambia la cantidad de una linea (0 la elimina)
// @Tags pos
// @Accept json
// @Produce json
// @Param id path string true "ID de producto"
// @Param body body dto.ActualizarCantidadRequest true "Cantidad"
// @Success 200 {object} pos.View
// @Router /v1/pos/carrito/lineas/{id} [patch]
func (h *PosHandler) ActualizarCantidad(c *gin.Context) {
	var req dto.ActualizarCantidadRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.dispatch(c, http.StatusOK, pos.SetQuantity{ProductID: c.Param("id"), Quantity: req.Cantidad})
}

// EliminarLinea godoc
// @Summary Elimina una linea del carrito
// @Tags pos
// @Produce json
// @Param id path string true "ID de producto"
// @Success 200 {object} pos.View
// @Router /v1/pos/carrito/lineas/{id} [delete]
func (h *PosHandler) EliminarLinea(c *gin.Context) {
	h.dispatch(c, http.StatusOK, pos.RemoveLine{ProductID: c.Param("id")})
}

// AjustarUltimo godoc
// @Summary Suma o resta una unidad a la ultima linea tocada
// @Tags pos
// @Accept json
// @Produce json
// @Param body body dto.AjustarUltimoRequest true "Delta"
// @Success 200 {object} pos.View
// @Router /v1/pos/carrito/ultimo [post]
func (h *PosHandler) AjustarUltimo(c *gin.Context) {
	var req dto.AjustarUltimoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.dispatch(c, http.StatusOK, pos.AdjustLastTouched{Delta: req.Delta})
}

// VaciarCarrito godoc
// @Summary Descarta la venta en curso
// @Tags pos
// @Produce json
// @Success 200 {object} pos.View
// @Failure 409 {object} apierror.APIError
// @Router /v1/pos/carrito [delete]
func (h *PosHandler) VaciarCarrito(c *gin.Context) {
	h.dispatch(c, http.StatusOK, pos.ResetSale{})
}

// Descuento godoc
// @Summary Aplica un descuento fijo o porcentual al subtotal
// @Tags pos
// @Accept json
// @Produce json
// @Param body body dto.DescuentoRequest true "Descuento"
// @Success 200 {object} pos.View
// @Failure 422 {object} apierror.APIError
// @Router /v1/pos/descuento [put]
func (h *PosHandler) Descuento(c *gin.Context) {
	var req dto.DescuentoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.dispatch(c, http.StatusOK, pos.SetDiscount{Discount: pos.Discount{Amount: req.Monto, Kind: pos.DiscountKind(req.Tipo)}})
}

// Cliente godoc
// @Summary Selecciona el cliente o proveedor de la factura
// @Tags pos
// @Accept json
// @Produce json
// @Param body body dto.ClienteRequest true "Cliente"
// @Success 200 {object} pos.View
// @Router /v1/pos/cliente [put]
func (h *PosHandler) Cliente(c *gin.Context) {
	var req dto.ClienteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.dispatch(c, http.StatusOK, pos.SelectParty{Party: pos.Party{
		ID:    req.ID,
		Name:  req.Nombre,
		TaxID: req.RNC,
		Role:  pos.Role(req.Tipo),
	}})
}

// Pago godoc
// @Summary Selecciona el metodo de pago y sus datos
// @Tags pos
// @Accept json
// @Produce json
// @Param body body dto.PagoRequest true "Pago"
// @Success 200 {object} pos.View
// @Failure 422 {object} apierror.APIError
// @Router /v1/pos/pago [put]
func (h *PosHandler) Pago(c *gin.Context) {
	var req dto.PagoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	actions := []pos.Action{pos.SelectPayment{Method: pos.PaymentMethod(req.Metodo)}}
	if req.MontoRecibido != nil {
		actions = append(actions, pos.SetReceived{Amount: *req.MontoRecibido})
	}
	if req.FechaVencimiento != nil {
		due, err := time.ParseInLocation("2006-01-02", *req.FechaVencimiento, time.Local)
		if err != nil {
			writeError(c, &pos.ValidationError{Field: "fecha_vencimiento", Message: "Fecha invalida"})
			return
		}
		actions = append(actions, pos.SetDueDate{Date: due})
	}

	var view pos.View
	for _, a := range actions {
		var err error
		if view, err = h.term.Dispatch(ctx, a); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, view)
}

// CancelarPago godoc
// @Summary Vuelve a la edicion del carrito
// @Tags pos
// @Produce json
// @Success 200 {object} pos.View
// @Router /v1/pos/pago [delete]
func (h *PosHandler) CancelarPago(c *gin.Context) {
	h.dispatch(c, http.StatusOK, pos.CancelPayment{})
}

// Facturar godoc
// @Summary Emite la factura de la venta en curso
// @Description Requiere caja abierta. Reintentar tras un error de transporte reutiliza la misma clave de idempotencia.
// @Tags pos
// @Produce json
// @Success 201 {object} pos.View
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Failure 502 {object} apierror.APIError
// @Router /v1/pos/facturar [post]
func (h *PosHandler) Facturar(c *gin.Context) {
	view, err := h.term.Dispatch(c.Request.Context(), pos.SubmitInvoice{})
	if err != nil {
		writeError(c, err)
		return
	}
	if h.cache != nil {
		// stock changed on the backend
		if err := h.cache.Invalidate(c.Request.Context()); err != nil {
			log.Warn().Err(err).Msg("pos: catalog cache invalidation failed")
		}
	}
	c.JSON(http.StatusCreated, view)
}

// Teclas godoc
// @Summary Envia pulsaciones del teclado o lector de codigos
// @Tags pos
// @Accept json
// @Produce json
// @Param body body dto.TeclasRequest true "Teclas"
// @Success 200 {object} dto.TeclasResponse
// @Router /v1/pos/teclas [post]
func (h *PosHandler) Teclas(c *gin.Context) {
	var req dto.TeclasRequest
	if !bindAndValidate(c, &req) {
		return
	}
	source := pos.SourceAmbient
	if req.Fuente == string(pos.SourceManual) {
		source = pos.SourceManual
	}
	events := make([]pos.KeyEvent, 0, len(req.Teclas))
	for _, k := range req.Teclas {
		events = append(events, pos.KeyEvent{Key: k, FocusOnTextInput: req.FocoTexto, Source: source})
	}

	resp := dto.TeclasResponse{Codigos: []dto.CodigoEscaneado{}}
	for _, o := range h.term.HandleKeys(c.Request.Context(), events) {
		sc := dto.CodigoEscaneado{Codigo: o.Code}
		if o.Err != nil {
			sc.Error = o.Err.Error()
		}
		resp.Codigos = append(resp.Codigos, sc)
	}
	c.JSON(http.StatusOK, resp)
}

// EscanerManual godoc
// @Summary Activa o desactiva el modo de escaneo manual
// @Tags pos
// @Accept json
// @Produce json
// @Param body body dto.EscanerManualRequest true "Modo"
// @Success 200 {object} pos.View
// @Router /v1/pos/escaner/manual [put]
func (h *PosHandler) EscanerManual(c *gin.Context) {
	var req dto.EscanerManualRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.term.SetManualScan(req.Activo)
	c.JSON(http.StatusOK, h.term.View())
}

package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/pos"

	"github.com/shopspring/decimal"
)

// BillingClient talks to the billing backend's JSON API. It implements
// pos.ShiftBackend, pos.InvoiceBackend and pos.Catalog.
type BillingClient struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ pos.ShiftBackend   = (*BillingClient)(nil)
	_ pos.InvoiceBackend = (*BillingClient)(nil)
	_ pos.Catalog        = (*BillingClient)(nil)
)

func NewBillingClient(baseURL string, timeout time.Duration) *BillingClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BillingClient{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ── Productos ─────────────────────────────────────────────────────────────────

func (c *BillingClient) Lookup(ctx context.Context, query string, exact bool) ([]pos.Product, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("exact", strconv.FormatBool(exact))

	var items []dto.ProductoBackend
	status, err := c.do(ctx, http.MethodGet, "/productos?"+q.Encode(), nil, nil, &items)
	if err != nil {
		return nil, &pos.TransportError{Op: "productos", Err: err}
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, &pos.TransportError{Op: "productos", Err: fmt.Errorf("backend returned %d", status)}
	}

	out := make([]pos.Product, 0, len(items))
	for _, it := range items {
		out = append(out, pos.Product{ID: it.ID, Name: it.Name, Price: it.Price, Taxable: it.Itbis, Stock: it.Stock})
	}
	return out, nil
}

// ── Caja ──────────────────────────────────────────────────────────────────────

func (c *BillingClient) FetchShiftState(ctx context.Context) (pos.ShiftState, error) {
	const op = "caja: estado"
	var resp dto.EstadoCajaBackendResponse
	if err := c.call(ctx, op, http.MethodGet, "/caja/estado-actual", nil, &resp, &resp.BackendEnvelope); err != nil {
		return pos.ShiftState{}, err
	}
	if resp.Data == nil {
		return pos.ShiftState{}, nil
	}
	return shiftStateFromBackend(*resp.Data), nil
}

func (c *BillingClient) OpenShift(ctx context.Context, openingFloat decimal.Decimal) error {
	var resp dto.BackendEnvelope
	body := dto.AbrirCajaBackendRequest{MontoInicial: openingFloat}
	return c.call(ctx, "caja: abrir", http.MethodPost, "/caja/abrir", body, &resp, &resp)
}

func (c *BillingClient) CloseShift(ctx context.Context, in pos.CloseInput) (pos.CloseResult, error) {
	body := dto.CerrarCajaBackendRequest{
		Observaciones: in.Notes,
		MontoEfectivo: in.CountedCash,
		MontoTarjeta:  in.CountedCard,
		MontoTotal:    in.CountedCash.Add(in.CountedCard),
	}
	var resp dto.CerrarCajaBackendResponse
	if err := c.call(ctx, "caja: cerrar", http.MethodPost, "/caja/cerrar", body, &resp, &resp.BackendEnvelope); err != nil {
		return pos.CloseResult{}, err
	}
	return pos.CloseResult{ShiftID: resp.TurnoID, Stats: statsFromBackend(resp.Estadisticas)}, nil
}

func (c *BillingClient) RegisterMovement(ctx context.Context, in pos.MovementInput) error {
	body := dto.MovimientoBackendRequest{
		Tipo:        string(in.Kind),
		MetodoPago:  string(in.Method),
		Monto:       in.Amount,
		Descripcion: in.Description,
		FacturaID:   in.InvoiceID,
	}
	var resp dto.BackendEnvelope
	return c.call(ctx, "caja: movimiento", http.MethodPost, "/caja/movimientos", body, &resp, &resp)
}

func (c *BillingClient) FetchBillingStats(ctx context.Context) (pos.BillingStats, error) {
	var resp dto.EstadisticasBackendResponse
	if err := c.call(ctx, "caja: estadisticas", http.MethodGet, "/caja/estadisticas-facturacion", nil, &resp, &resp.BackendEnvelope); err != nil {
		return pos.BillingStats{}, err
	}
	return statsFromBackend(resp.Data), nil
}

// ── Facturas ──────────────────────────────────────────────────────────────────

// SubmitInvoice posts the invoice with the attempt's Idempotency-Key header.
func (c *BillingClient) SubmitInvoice(ctx context.Context, idempotencyKey string, req dto.FacturaRequest) (*dto.FacturaBackendResponse, error) {
	const op = "facturas"
	headers := map[string]string{"Idempotency-Key": idempotencyKey}

	var resp dto.FacturaBackendResponse
	status, err := c.do(ctx, http.MethodPost, "/facturas", headers, req, &resp)
	if err != nil {
		return nil, &pos.TransportError{Op: op, Err: err}
	}
	if err := envelopeError(op, status, resp.BackendEnvelope); err != nil {
		return nil, err
	}
	if resp.FacturaID == 0 {
		return nil, &pos.TransportError{Op: op, Err: errors.New("respuesta sin factura_id")}
	}
	return &resp, nil
}

func (c *BillingClient) FetchInvoicePDF(ctx context.Context, facturaID int64) ([]byte, error) {
	op := fmt.Sprintf("facturas: pdf %d", facturaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/facturas/%d/pdf", c.baseURL, facturaID), nil)
	if err != nil {
		return nil, &pos.TransportError{Op: op, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &pos.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return nil, pos.ErrPDFNotAvailable
	case resp.StatusCode != http.StatusOK:
		return nil, &pos.TransportError{Op: op, Err: fmt.Errorf("backend returned %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pos.TransportError{Op: op, Err: err}
	}
	return data, nil
}

// ── Plumbing ──────────────────────────────────────────────────────────────────

// call performs an envelope-style request and maps the outcome onto the pos
// error families.
func (c *BillingClient) call(ctx context.Context, op, method, path string, body, out any, env *dto.BackendEnvelope) error {
	status, err := c.do(ctx, method, path, nil, body, out)
	if err != nil {
		return &pos.TransportError{Op: op, Err: err}
	}
	return envelopeError(op, status, *env)
}

// do sends the request and decodes the JSON body into out. Only network and
// decoding failures are returned as errors; the status is left to the caller.
func (c *BillingClient) do(ctx context.Context, method, path string, headers map[string]string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// envelopeError turns success=false into a BusinessRejection with the
// server's message, and any other non-2xx status into a TransportError.
func envelopeError(op string, status int, env dto.BackendEnvelope) error {
	if !env.Success {
		msg := env.Error
		if env.Mensaje != "" {
			msg = env.Mensaje
		}
		if msg == "" {
			if status < 300 {
				return &pos.TransportError{Op: op, Err: errors.New("respuesta sin success")}
			}
			msg = http.StatusText(status)
		}
		return &pos.BusinessRejection{Op: op, Message: msg}
	}
	if status >= 300 {
		return &pos.TransportError{Op: op, Err: fmt.Errorf("backend returned %d", status)}
	}
	return nil
}

func shiftStateFromBackend(d dto.EstadoCajaData) pos.ShiftState {
	st := pos.ShiftState{
		Open:         d.Open,
		StartedAt:    parseBackendTime(d.Start),
		EndedAt:      parseBackendTime(d.End),
		CashierName:  d.Cashier,
		OpeningFloat: d.InitialCash,
		ShiftID:      d.TurnoID,
		Stats: pos.BillingStats{
			InvoiceCount:  d.Facturas,
			InvoiceTotal:  d.TotalFacturado,
			LastInvoiceID: d.UltimaFactura,
		},
	}
	st.Movements = make([]pos.Movement, 0, len(d.Movements))
	for _, m := range d.Movements {
		mv := pos.Movement{
			ID:          m.ID,
			Kind:        pos.MovementKind(m.Tipo),
			Method:      pos.PaymentMethod(m.MetodoPago),
			Amount:      m.Monto,
			Description: m.Descripcion,
			InvoiceID:   m.FacturaID,
		}
		if ts := parseBackendTime(&m.Fecha); ts != nil {
			mv.Timestamp = *ts
		}
		st.Movements = append(st.Movements, mv)
	}
	return st
}

func statsFromBackend(s dto.EstadisticasFacturacion) pos.BillingStats {
	return pos.BillingStats{
		InvoiceCount:  s.TotalFacturas,
		InvoiceTotal:  s.TotalFacturado,
		LastInvoiceID: s.UltimaFacturaID,
	}
}

// The backend emits ISO timestamps with and without fractional seconds or zone.
var backendTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseBackendTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range backendTimeLayouts {
		if t, err := time.ParseInLocation(layout, *s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

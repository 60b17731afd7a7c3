package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	dueDateLayout      = "2006-01-02"
	movementRetryDelay = 30 * time.Second
)

// InvoiceBackend is the remote side of invoicing.
type InvoiceBackend interface {
	SubmitInvoice(ctx context.Context, idempotencyKey string, req dto.FacturaRequest) (*dto.FacturaBackendResponse, error)
	// FetchInvoicePDF returns ErrPDFNotAvailable when the backend has no PDF.
	FetchInvoicePDF(ctx context.Context, facturaID int64) ([]byte, error)
}

// MovementRecorder registers cash-ledger movements. *ShiftSession implements it.
type MovementRecorder interface {
	RecordMovement(ctx context.Context, in MovementInput) error
}

// Submission is everything one invoice attempt needs, captured at submit time.
type Submission struct {
	IdempotencyKey string
	Lines          []CartLine
	Totals         Totals
	Party          Party
	Method         PaymentMethod
	Received       decimal.Decimal
	DueDate        time.Time
	Shift          ShiftRef
}

// SubmitResult describes an accepted invoice. Movement and PDFErr carry the
// follow-up failures that do not undo the invoice.
type SubmitResult struct {
	InvoiceID         int64
	NCF               string
	AuthorizationCode string
	Warning           string
	Total             decimal.Decimal
	Change            decimal.Decimal
	Movement          error
	PDFPath           string
	PDFErr            error
	Replayed          bool
}

type InvoiceSubmitter struct {
	backend   InvoiceBackend
	movements MovementRecorder
	journal   repository.EnvioRepository
	pdfDir    string
	now       func() time.Time
}

func NewInvoiceSubmitter(backend InvoiceBackend, movements MovementRecorder, journal repository.EnvioRepository, pdfDir string) *InvoiceSubmitter {
	return &InvoiceSubmitter{
		backend:   backend,
		movements: movements,
		journal:   journal,
		pdfDir:    pdfDir,
		now:       time.Now,
	}
}

// BuildRequest maps a submission onto the backend payload. Amounts are
// rounded to cents.
func BuildRequest(sub Submission) dto.FacturaRequest {
	t := sub.Totals.Rounded()
	req := dto.FacturaRequest{
		ClienteID:   sub.Party.ID,
		Total:       t.GrandTotal,
		Descuento:   t.DiscountAmount,
		ItbisTotal:  t.TaxTotal,
		MetodoPago:  string(sub.Method),
		EsProveedor: sub.Party.IsSupplier(),
		Detalles:    make([]dto.FacturaDetalle, 0, len(sub.Lines)),
	}
	for _, l := range sub.Lines {
		req.Detalles = append(req.Detalles, dto.FacturaDetalle{
			ProductoID: l.ProductID,
			Cantidad:   l.Quantity,
			Precio:     l.UnitPrice,
			Itbis:      l.Taxable,
		})
	}
	switch sub.Method {
	case MethodCredit:
		due := sub.DueDate.Format(dueDateLayout)
		req.FechaVencimiento = &due
	case MethodCash:
		received := sub.Received
		req.MontoRecibido = &received
	}
	return req
}

// Submit posts the invoice, then registers its cash movement and, for
// supplier purchases, fetches the PDF. Only the invoice post can fail Submit.
func (s *InvoiceSubmitter) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	if len(sub.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	req := BuildRequest(sub)

	rec := s.lookup(ctx, sub.IdempotencyKey)
	if rec != nil && rec.Estado == model.EnvioAceptada && rec.FacturaID != nil {
		return replayed(rec, sub), nil
	}
	rec = s.begin(ctx, rec, sub, req)

	resp, err := s.backend.SubmitInvoice(ctx, sub.IdempotencyKey, req)
	if err != nil {
		s.fail(ctx, rec, err)
		return nil, err
	}

	res := &SubmitResult{
		InvoiceID:         resp.FacturaID,
		NCF:               resp.NCF,
		AuthorizationCode: resp.CodigoAutorizacion,
		Warning:           resp.Warning,
		Total:             req.Total,
		Change:            change(sub.Method, sub.Received, req.Total),
	}
	if rec != nil {
		id := resp.FacturaID
		rec.Estado = model.EnvioAceptada
		rec.FacturaID = &id
		rec.NCF = strPtr(resp.NCF)
		rec.CodigoAutorizacion = strPtr(resp.CodigoAutorizacion)
		rec.Error = nil
	}

	s.registerMovement(ctx, rec, sub, res)

	if sub.Party.IsSupplier() {
		res.PDFPath, res.PDFErr = s.savePDF(ctx, resp.FacturaID)
		if res.PDFPath != "" && rec != nil {
			rec.PDFPath = &res.PDFPath
		}
	}

	s.save(ctx, rec)
	log.Info().
		Int64("factura_id", res.InvoiceID).
		Str("ncf", res.NCF).
		Str("metodo_pago", string(sub.Method)).
		Str("total", res.Total.StringFixed(2)).
		Msg("submitter: factura aceptada")
	return res, nil
}

func (s *InvoiceSubmitter) registerMovement(ctx context.Context, rec *model.EnvioFactura, sub Submission, res *SubmitResult) {
	in := movementFor(res.InvoiceID, sub.Party, sub.Method, res.Total, sub.Shift)
	if rec != nil {
		rec.MovimientoTipo = string(in.Kind)
	}

	err := s.movements.RecordMovement(ctx, in)
	switch {
	case err == nil:
		setMovementState(rec, model.MovimientoRegistrado)
	case movementNotNeeded(err):
		setMovementState(rec, model.MovimientoNoAplica)
	default:
		res.Movement = &PartialFailure{InvoiceID: res.InvoiceID, Step: "movimiento de caja", Err: err}
		log.Warn().Err(err).Int64("factura_id", res.InvoiceID).Msg("submitter: movimiento no registrado en caja")
		if rec != nil {
			msg := err.Error()
			next := s.now().Add(movementRetryDelay)
			rec.MovimientoEstado = model.MovimientoPendiente
			rec.LastError = &msg
			rec.NextRetryAt = &next
		}
	}
}

// RetryMovement re-attempts the movement of an accepted invoice and marks the
// journal entry registered on success. Failure bookkeeping is left to the caller.
func (s *InvoiceSubmitter) RetryMovement(ctx context.Context, rec *model.EnvioFactura) error {
	if rec.FacturaID == nil {
		return fmt.Errorf("envio %s sin factura_id", rec.ID)
	}
	party := Party{ID: rec.ClienteID, Name: rec.ClienteNombre, Role: RoleCustomer}
	if rec.EsProveedor {
		party.Role = RoleSupplier
	}
	shift := ShiftRef{ID: rec.TurnoID, StartedAt: rec.TurnoInicio}
	in := movementFor(*rec.FacturaID, party, PaymentMethod(rec.MetodoPago), rec.Total, shift)

	err := s.movements.RecordMovement(ctx, in)
	switch {
	case err == nil:
		setMovementState(rec, model.MovimientoRegistrado)
	case movementNotNeeded(err):
		setMovementState(rec, model.MovimientoNoAplica)
	case errors.Is(err, ErrMovementShiftChanged):
		msg := err.Error()
		rec.MovimientoEstado = model.MovimientoError
		rec.NextRetryAt = nil
		rec.LastError = &msg
		s.save(ctx, rec)
		return err
	default:
		return err
	}
	rec.NextRetryAt = nil
	rec.LastError = nil
	s.save(ctx, rec)
	return nil
}

// RetryMovementForInvoice is the cashier-triggered retry for one invoice.
func (s *InvoiceSubmitter) RetryMovementForInvoice(ctx context.Context, facturaID int64) error {
	if s.journal == nil {
		return errors.New("journal no disponible")
	}
	rec, err := s.journal.FindByFacturaID(ctx, facturaID)
	if err != nil {
		return fmt.Errorf("factura %d no encontrada en el registro local: %w", facturaID, err)
	}
	if rec.MovimientoEstado == model.MovimientoRegistrado || rec.MovimientoEstado == model.MovimientoNoAplica {
		return nil
	}
	if err := s.RetryMovement(ctx, rec); err != nil {
		msg := err.Error()
		rec.LastError = &msg
		s.save(ctx, rec)
		return err
	}
	return nil
}

func (s *InvoiceSubmitter) savePDF(ctx context.Context, facturaID int64) (string, error) {
	data, err := s.backend.FetchInvoicePDF(ctx, facturaID)
	if err != nil {
		if !errors.Is(err, ErrPDFNotAvailable) {
			log.Warn().Err(err).Int64("factura_id", facturaID).Msg("submitter: PDF fetch failed")
		}
		return "", err
	}
	if err := os.MkdirAll(s.pdfDir, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	path := filepath.Join(s.pdfDir, fmt.Sprintf("factura_compra_%d.pdf", facturaID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return path, nil
}

// ── Journal helpers ───────────────────────────────────────────────────────────
// The journal is best effort: a failing database never blocks a sale.

func (s *InvoiceSubmitter) lookup(ctx context.Context, key string) *model.EnvioFactura {
	if s.journal == nil {
		return nil
	}
	rec, err := s.journal.FindByIdempotencyKey(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("idempotency_key", key).Msg("submitter: journal lookup failed")
		return nil
	}
	return rec
}

func (s *InvoiceSubmitter) begin(ctx context.Context, rec *model.EnvioFactura, sub Submission, req dto.FacturaRequest) *model.EnvioFactura {
	if s.journal == nil {
		return nil
	}
	payload, _ := json.Marshal(req)
	fresh := rec == nil
	if fresh {
		rec = &model.EnvioFactura{IdempotencyKey: sub.IdempotencyKey}
	}
	rec.Estado = model.EnvioEnviando
	rec.ClienteID = sub.Party.ID
	rec.ClienteNombre = sub.Party.Name
	rec.EsProveedor = sub.Party.IsSupplier()
	rec.MetodoPago = string(sub.Method)
	rec.Total = req.Total
	rec.Descuento = req.Descuento
	rec.ItbisTotal = req.ItbisTotal
	rec.Payload = string(payload)
	rec.MovimientoEstado = model.MovimientoNoAplica
	rec.TurnoID = sub.Shift.ID
	rec.TurnoInicio = sub.Shift.StartedAt

	var err error
	if fresh {
		err = s.journal.Create(ctx, rec)
	} else {
		err = s.journal.Update(ctx, rec)
	}
	if err != nil {
		log.Warn().Err(err).Str("idempotency_key", sub.IdempotencyKey).Msg("submitter: journal write failed")
		return nil
	}
	return rec
}

func (s *InvoiceSubmitter) fail(ctx context.Context, rec *model.EnvioFactura, err error) {
	if rec == nil {
		return
	}
	var br *BusinessRejection
	if errors.As(err, &br) {
		rec.Estado = model.EnvioRechazada
	} else {
		rec.Estado = model.EnvioError
	}
	msg := err.Error()
	rec.Error = &msg
	s.save(ctx, rec)
}

func (s *InvoiceSubmitter) save(ctx context.Context, rec *model.EnvioFactura) {
	if s.journal == nil || rec == nil {
		return
	}
	if err := s.journal.Update(ctx, rec); err != nil {
		log.Warn().Err(err).Str("envio_id", rec.ID.String()).Msg("submitter: journal update failed")
	}
}

func replayed(rec *model.EnvioFactura, sub Submission) *SubmitResult {
	res := &SubmitResult{
		InvoiceID: *rec.FacturaID,
		Total:     rec.Total,
		Change:    change(sub.Method, sub.Received, rec.Total),
		Replayed:  true,
	}
	if rec.NCF != nil {
		res.NCF = *rec.NCF
	}
	if rec.CodigoAutorizacion != nil {
		res.AuthorizationCode = *rec.CodigoAutorizacion
	}
	if rec.PDFPath != nil {
		res.PDFPath = *rec.PDFPath
	}
	return res
}

func movementFor(facturaID int64, party Party, method PaymentMethod, total decimal.Decimal, shift ShiftRef) MovementInput {
	id := facturaID
	return MovementInput{
		Kind:        party.MovementKind(),
		Method:      method,
		Amount:      total,
		Description: fmt.Sprintf("Factura #%d - %s", facturaID, party.Name),
		InvoiceID:   &id,
		Shift:       shift,
	}
}

// movementNotNeeded recognizes the backend refusing a movement it already has
// or never takes (purchase invoices).
func movementNotNeeded(err error) bool {
	var br *BusinessRejection
	if !errors.As(err, &br) {
		return false
	}
	msg := strings.ToLower(br.Message)
	return strings.Contains(msg, "ya está registrado") || strings.Contains(msg, "facturas de compra")
}

func setMovementState(rec *model.EnvioFactura, state string) {
	if rec != nil {
		rec.MovimientoEstado = state
	}
}

func change(m PaymentMethod, received, total decimal.Decimal) decimal.Decimal {
	if m != MethodCash {
		return decimal.Zero
	}
	return decimal.Max(received.Sub(total), decimal.Zero)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

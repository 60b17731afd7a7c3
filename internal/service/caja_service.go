package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/infra"
	"cajapos/internal/pos"
	"cajapos/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrNoReport is returned when no shift has been closed since startup.
var ErrNoReport = errors.New("No hay reporte de cierre disponible")

type CajaService interface {
	Estado(ctx context.Context) (*dto.EstadoCajaResponse, error)
	Abrir(ctx context.Context, req dto.AbrirCajaRequest) (*dto.EstadoCajaResponse, error)
	Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error)
	RegistrarMovimiento(ctx context.Context, req dto.MovimientoManualRequest) (*dto.EstadoCajaResponse, error)
	Conciliacion(ctx context.Context, efectivo, tarjeta decimal.Decimal) (*dto.ConciliacionResponse, error)
	EstadisticasFacturacion(ctx context.Context) (*pos.BillingStats, error)
	// UltimoReporte returns the PDF path of the last closed shift.
	UltimoReporte() (string, error)
}

// ReportQueue is satisfied by *worker.Dispatcher.
type ReportQueue interface {
	EnqueueShiftReport(ctx context.Context, payload worker.EmailJobPayload) error
}

type cajaService struct {
	shift      *pos.ShiftSession
	queue      ReportQueue
	pdfDir     string
	recipients []string

	mu        sync.Mutex
	lastPDF   string
	renderPDF func(report *pos.ShiftReport, dir string) (string, error)
}

func NewCajaService(shift *pos.ShiftSession, queue ReportQueue, pdfDir string, recipients []string) CajaService {
	return &cajaService{
		shift:      shift,
		queue:      queue,
		pdfDir:     pdfDir,
		recipients: recipients,
		renderPDF:  infra.GenerateShiftReportPDF,
	}
}

func (s *cajaService) Estado(ctx context.Context) (*dto.EstadoCajaResponse, error) {
	st, err := s.shift.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return estadoResponse(st), nil
}

func (s *cajaService) Abrir(ctx context.Context, req dto.AbrirCajaRequest) (*dto.EstadoCajaResponse, error) {
	st, err := s.shift.Open(ctx, req.MontoInicial)
	if err != nil {
		return nil, err
	}
	log.Info().Str("monto_inicial", req.MontoInicial.StringFixed(2)).Str("cajero", st.CashierName).Msg("caja: turno abierto")
	return estadoResponse(st), nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// Closing renders the report PDF and queues it for mailing. Neither step can
// undo the close: failures are logged and the response omits the PDF.

func (s *cajaService) Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error) {
	report, err := s.shift.Close(ctx, pos.CloseRequest{
		CountedCash:  req.MontoEfectivo,
		CountedCard:  req.MontoTarjeta,
		Notes:        req.Observaciones,
		ConfirmEmpty: req.Confirmar,
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.CierreCajaResponse{
		TurnoID:         report.ShiftID,
		Conciliacion:    conciliacionResponse(report.Reconciliation),
		TotalFacturas:   report.Stats.InvoiceCount,
		TotalFacturado:  report.Stats.InvoiceTotal,
		UltimaFacturaID: report.Stats.LastInvoiceID,
	}

	path, err := s.renderPDF(report, s.pdfDir)
	if err != nil {
		log.Error().Err(err).Msg("caja: shift report PDF failed")
		return resp, nil
	}
	s.mu.Lock()
	s.lastPDF = path
	s.mu.Unlock()
	resp.ReportePDF = path

	to := s.recipients
	if req.EmailReporte != "" {
		to = []string{req.EmailReporte}
	}
	if len(to) > 0 && s.queue != nil {
		job := worker.EmailJobPayload{
			To:      to,
			Subject: infra.ShiftReportSubject(report),
			Body:    infra.ShiftReportBody(report),
			PDFPath: path,
		}
		if err := s.queue.EnqueueShiftReport(ctx, job); err != nil {
			log.Error().Err(err).Msg("caja: failed to queue shift report mail")
		}
	}

	log.Info().
		Str("efectivo", report.Reconciliation.Cash.Label()).
		Str("tarjeta", report.Reconciliation.Card.Label()).
		Int("facturas", report.Stats.InvoiceCount).
		Msg("caja: turno cerrado")
	return resp, nil
}

func (s *cajaService) RegistrarMovimiento(ctx context.Context, req dto.MovimientoManualRequest) (*dto.EstadoCajaResponse, error) {
	err := s.shift.RecordMovement(ctx, pos.MovementInput{
		Kind:        pos.MovementKind(req.Tipo),
		Method:      pos.PaymentMethod(req.MetodoPago),
		Amount:      req.Monto,
		Description: req.Descripcion,
	})
	if err != nil {
		return nil, err
	}
	return estadoResponse(s.shift.State()), nil
}

// Conciliacion compares counted amounts against the cached shift without
// closing it.
func (s *cajaService) Conciliacion(_ context.Context, efectivo, tarjeta decimal.Decimal) (*dto.ConciliacionResponse, error) {
	st := s.shift.State()
	if !st.Open {
		return nil, pos.ErrShiftClosed
	}
	resp := conciliacionResponse(st.Reconcile(efectivo, tarjeta))
	return &resp, nil
}

func (s *cajaService) EstadisticasFacturacion(ctx context.Context) (*pos.BillingStats, error) {
	stats, err := s.shift.RefreshStats(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *cajaService) UltimoReporte() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPDF == "" {
		return "", ErrNoReport
	}
	return s.lastPDF, nil
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func estadoResponse(st pos.ShiftState) *dto.EstadoCajaResponse {
	resp := &dto.EstadoCajaResponse{
		Abierto:          st.Open,
		Cajero:           st.CashierName,
		Inicio:           formatTime(st.StartedAt),
		Fin:              formatTime(st.EndedAt),
		MontoInicial:     st.OpeningFloat,
		EfectivoEsperado: st.ExpectedCash(),
		TarjetaEsperado:  st.ExpectedCard(),
		TotalFacturas:    st.Stats.InvoiceCount,
		TotalFacturado:   st.Stats.InvoiceTotal,
		UltimaFacturaID:  st.Stats.LastInvoiceID,
		TurnoID:          st.ShiftID,
		Movimientos:      make([]dto.MovimientoResponse, 0, len(st.Movements)),
	}
	for _, mv := range st.Movements {
		resp.Movimientos = append(resp.Movimientos, dto.MovimientoResponse{
			Tipo:        string(mv.Kind),
			MetodoPago:  string(mv.Method),
			Monto:       mv.Amount,
			Descripcion: mv.Description,
			Fecha:       mv.Timestamp.Format(time.RFC3339),
			FacturaID:   mv.InvoiceID,
		})
	}
	return resp
}

func conciliacionResponse(r pos.Reconciliation) dto.ConciliacionResponse {
	return dto.ConciliacionResponse{
		Efectivo: diferenciaResponse(r.Cash),
		Tarjeta:  diferenciaResponse(r.Card),
		Total:    diferenciaResponse(r.Total),
	}
}

func diferenciaResponse(d pos.Difference) dto.DiferenciaResponse {
	return dto.DiferenciaResponse{
		Esperado:   d.Expected,
		Contado:    d.Counted,
		Diferencia: d.Diff,
		Estado:     string(d.Status),
		Etiqueta:   d.Label(),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

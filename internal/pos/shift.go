package pos

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind is the cash-ledger direction of a movement.
type MovementKind string

const (
	MovementSale    MovementKind = "venta"
	MovementExpense MovementKind = "gasto"
)

// Movement is one entry of the shift's cash ledger.
type Movement struct {
	ID          int64           `json:"id"`
	Kind        MovementKind    `json:"tipo"`
	Method      PaymentMethod   `json:"metodo_pago"`
	Amount      decimal.Decimal `json:"monto"`
	Description string          `json:"descripcion"`
	Timestamp   time.Time       `json:"fecha"`
	InvoiceID   *int64          `json:"factura_id,omitempty"`
}

// BillingStats are the invoice counters of the open shift.
type BillingStats struct {
	InvoiceCount  int             `json:"total_facturas"`
	InvoiceTotal  decimal.Decimal `json:"total_facturado"`
	LastInvoiceID *int64          `json:"ultima_factura_id"`
}

// ShiftState is the locally cached view of the register shift.
type ShiftState struct {
	Open         bool            `json:"abierto"`
	StartedAt    *time.Time      `json:"inicio"`
	EndedAt      *time.Time      `json:"fin"`
	CashierName  string          `json:"cajero"`
	OpeningFloat decimal.Decimal `json:"monto_inicial"`
	Movements    []Movement      `json:"movimientos"`
	Stats        BillingStats    `json:"estadisticas"`
	ShiftID      *int64          `json:"turno_id,omitempty"`
}

// ShiftRef identifies one shift by backend id or, when the backend sends no
// id, by its start time.
type ShiftRef struct {
	ID        *int64
	StartedAt *time.Time
}

func (st ShiftState) Ref() ShiftRef {
	return ShiftRef{ID: st.ShiftID, StartedAt: st.StartedAt}
}

func (r ShiftRef) IsZero() bool { return r.ID == nil && r.StartedAt == nil }

// Matches reports whether st is the shift r names. The zero ref matches any shift.
func (r ShiftRef) Matches(st ShiftState) bool {
	switch {
	case r.IsZero():
		return true
	case r.ID != nil && st.ShiftID != nil:
		return *r.ID == *st.ShiftID
	case r.StartedAt != nil && st.StartedAt != nil:
		return r.StartedAt.Truncate(time.Second).Equal(st.StartedAt.Truncate(time.Second))
	default:
		return false
	}
}

type MovementInput struct {
	Kind        MovementKind
	Method      PaymentMethod
	Amount      decimal.Decimal
	Description string
	InvoiceID   *int64
	Shift       ShiftRef
}

func (in MovementInput) validate() error {
	if in.Kind != MovementSale && in.Kind != MovementExpense {
		return invalid("tipo", "Tipo de movimiento inválido")
	}
	if !in.Method.Valid() {
		return invalid("metodo_pago", "Método de pago inválido")
	}
	if !in.Amount.IsPositive() {
		return invalid("monto", "El monto debe ser mayor que cero")
	}
	return nil
}

// CloseInput is what the backend receives when the shift is closed.
type CloseInput struct {
	CountedCash decimal.Decimal
	CountedCard decimal.Decimal
	Notes       string
}

// CloseResult is the backend's answer to a close.
type CloseResult struct {
	ShiftID *int64
	Stats   BillingStats
}

// ShiftBackend is the remote side of the cash register.
type ShiftBackend interface {
	FetchShiftState(ctx context.Context) (ShiftState, error)
	OpenShift(ctx context.Context, openingFloat decimal.Decimal) error
	CloseShift(ctx context.Context, in CloseInput) (CloseResult, error)
	RegisterMovement(ctx context.Context, in MovementInput) error
	FetchBillingStats(ctx context.Context) (BillingStats, error)
}

// CloseRequest comes from the close form. ConfirmEmpty acknowledges closing
// with both counts at zero.
type CloseRequest struct {
	CountedCash  decimal.Decimal
	CountedCard  decimal.Decimal
	Notes        string
	ConfirmEmpty bool
}

// ── Reconciliation ────────────────────────────────────────────────────────────

var diffTolerance = decimal.NewFromFloat(0.01)

type DiffStatus string

const (
	DiffOK    DiffStatus = "cuadrado"
	DiffOver  DiffStatus = "sobrante"
	DiffShort DiffStatus = "faltante"
)

// Difference compares a counted amount against the expected one.
type Difference struct {
	Expected decimal.Decimal `json:"esperado"`
	Counted  decimal.Decimal `json:"contado"`
	Diff     decimal.Decimal `json:"diferencia"`
	Status   DiffStatus      `json:"estado"`
}

func NewDifference(expected, counted decimal.Decimal) Difference {
	diff := counted.Sub(expected)
	return Difference{Expected: expected, Counted: counted, Diff: diff, Status: classifyDiff(diff)}
}

func classifyDiff(diff decimal.Decimal) DiffStatus {
	switch {
	case diff.Abs().LessThan(diffTolerance):
		return DiffOK
	case diff.IsPositive():
		return DiffOver
	default:
		return DiffShort
	}
}

// Label is the text shown next to the difference.
func (d Difference) Label() string {
	switch d.Status {
	case DiffOK:
		return "Cuadrado"
	case DiffOver:
		return "+ " + d.Diff.StringFixed(2)
	default:
		return "- " + d.Diff.Abs().StringFixed(2)
	}
}

type Reconciliation struct {
	Cash  Difference `json:"efectivo"`
	Card  Difference `json:"tarjeta"`
	Total Difference `json:"total"`
}

// ExpectedCash is the opening float plus cash sales minus cash expenses.
func (s ShiftState) ExpectedCash() decimal.Decimal {
	return s.OpeningFloat.Add(s.netByMethod(MethodCash))
}

// ExpectedCard is card sales minus card expenses.
func (s ShiftState) ExpectedCard() decimal.Decimal {
	return s.netByMethod(MethodCard)
}

func (s ShiftState) netByMethod(m PaymentMethod) decimal.Decimal {
	net := decimal.Zero
	for _, mv := range s.Movements {
		if mv.Method != m {
			continue
		}
		switch mv.Kind {
		case MovementSale:
			net = net.Add(mv.Amount)
		case MovementExpense:
			net = net.Sub(mv.Amount)
		}
	}
	return net
}

func (s ShiftState) Reconcile(countedCash, countedCard decimal.Decimal) Reconciliation {
	cash := NewDifference(s.ExpectedCash(), countedCash)
	card := NewDifference(s.ExpectedCard(), countedCard)
	return Reconciliation{
		Cash:  cash,
		Card:  card,
		Total: NewDifference(cash.Expected.Add(card.Expected), countedCash.Add(countedCard)),
	}
}

// ShiftReport summarizes a closed shift for printing or mailing.
type ShiftReport struct {
	ShiftID        *int64
	CashierName    string
	StartedAt      *time.Time
	EndedAt        time.Time
	OpeningFloat   decimal.Decimal
	Reconciliation Reconciliation
	Stats          BillingStats
	Movements      []Movement
	Notes          string
}

// ── ShiftSession ──────────────────────────────────────────────────────────────

// ShiftSession caches the shift state and performs its transitions against
// the backend. After open the cache is refetched in full; after a movement
// only the billing statistics are refreshed.
type ShiftSession struct {
	mu      sync.Mutex
	backend ShiftBackend
	state   ShiftState
	now     func() time.Time
}

func NewShiftSession(backend ShiftBackend) *ShiftSession {
	return &ShiftSession{backend: backend, now: time.Now}
}

// State returns a copy of the cached state.
func (s *ShiftSession) State() ShiftState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ShiftSession) snapshotLocked() ShiftState {
	st := s.state
	st.Movements = append([]Movement(nil), s.state.Movements...)
	return st
}

// Refresh replaces the cache with the backend's current state.
func (s *ShiftSession) Refresh(ctx context.Context) (ShiftState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return s.snapshotLocked(), err
	}
	return s.snapshotLocked(), nil
}

func (s *ShiftSession) refreshLocked(ctx context.Context) error {
	st, err := s.backend.FetchShiftState(ctx)
	if err != nil {
		return err
	}
	s.state = st
	return nil
}

// IsOpen asks the backend whether a shift is open right now.
func (s *ShiftSession) IsOpen(ctx context.Context) (bool, error) {
	st, err := s.Refresh(ctx)
	if err != nil {
		return false, err
	}
	return st.Open, nil
}

// Open starts a shift with the given opening float.
func (s *ShiftSession) Open(ctx context.Context, openingFloat decimal.Decimal) (ShiftState, error) {
	if !openingFloat.IsPositive() {
		return s.State(), invalid("monto_inicial", "Ingrese un monto inicial válido")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.OpenShift(ctx, openingFloat); err != nil {
		return s.snapshotLocked(), err
	}
	if err := s.refreshLocked(ctx); err != nil {
		return s.snapshotLocked(), err
	}
	return s.snapshotLocked(), nil
}

// Close ends the open shift and returns its report.
func (s *ShiftSession) Close(ctx context.Context, req CloseRequest) (*ShiftReport, error) {
	if req.CountedCash.IsNegative() || req.CountedCard.IsNegative() {
		return nil, invalid("conteo", "Los montos contados no pueden ser negativos")
	}
	if req.CountedCash.IsZero() && req.CountedCard.IsZero() && !req.ConfirmEmpty {
		return nil, ErrEmptyCountUnconfirmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	if !s.state.Open {
		return nil, ErrShiftClosed
	}

	res, err := s.backend.CloseShift(ctx, CloseInput{
		CountedCash: req.CountedCash,
		CountedCard: req.CountedCard,
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, err
	}

	report := &ShiftReport{
		ShiftID:        res.ShiftID,
		CashierName:    s.state.CashierName,
		StartedAt:      s.state.StartedAt,
		EndedAt:        s.now(),
		OpeningFloat:   s.state.OpeningFloat,
		Reconciliation: s.state.Reconcile(req.CountedCash, req.CountedCard),
		Stats:          res.Stats,
		Movements:      append([]Movement(nil), s.state.Movements...),
		Notes:          req.Notes,
	}

	ended := report.EndedAt
	s.state.Open = false
	s.state.EndedAt = &ended
	s.state.Stats = res.Stats
	if res.ShiftID != nil {
		s.state.ShiftID = res.ShiftID
	}
	return report, nil
}

// RecordMovement registers a ledger entry while the shift is open. A movement
// bound to a shift through in.Shift is refused once that shift has ended.
func (s *ShiftSession) RecordMovement(ctx context.Context, in MovementInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return err
	}
	if !s.state.Open {
		return ErrShiftClosed
	}
	if !in.Shift.Matches(s.state) {
		return ErrMovementShiftChanged
	}
	if err := s.backend.RegisterMovement(ctx, in); err != nil {
		return err
	}
	s.state.Movements = append(s.state.Movements, Movement{
		Kind:        in.Kind,
		Method:      in.Method,
		Amount:      in.Amount,
		Description: in.Description,
		Timestamp:   s.now(),
		InvoiceID:   in.InvoiceID,
	})
	stats, err := s.backend.FetchBillingStats(ctx)
	if err != nil {
		// the movement is registered; stale counters are fixed by the next refresh
		return nil
	}
	s.state.Stats = stats
	return nil
}

// RefreshStats refetches only the billing counters.
func (s *ShiftSession) RefreshStats(ctx context.Context) (BillingStats, error) {
	stats, err := s.backend.FetchBillingStats(ctx)
	if err != nil {
		return BillingStats{}, err
	}
	s.mu.Lock()
	s.state.Stats = stats
	s.mu.Unlock()
	return stats, nil
}

// Prefill returns the expected amounts shown in the close form.
func (s *ShiftSession) Prefill() (cash, card decimal.Decimal) {
	st := s.State()
	return st.ExpectedCash(), st.ExpectedCard()
}

package pos

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(n int) *int { return &n }

// ── Manual timers ─────────────────────────────────────────────────────────────

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every timer that is still armed.
func (c *fakeTimers) fire() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeTimers) lastDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return 0
	}
	return c.timers[len(c.timers)-1].d
}

// ── Catalog ───────────────────────────────────────────────────────────────────

type fakeCatalog struct {
	exact map[string]Product
	fuzzy []Product
	err   error
	calls []bool
}

func (c *fakeCatalog) Lookup(_ context.Context, q string, exact bool) ([]Product, error) {
	c.calls = append(c.calls, exact)
	if c.err != nil {
		return nil, c.err
	}
	if exact {
		if p, ok := c.exact[q]; ok {
			return []Product{p}, nil
		}
		return nil, nil
	}
	var out []Product
	for _, p := range c.fuzzy {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) || strings.Contains(p.ID, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ── Shift backend ─────────────────────────────────────────────────────────────

type fakeShiftBackend struct {
	state       ShiftState
	openCalls   []decimal.Decimal
	closeCalls  []CloseInput
	movements   []MovementInput
	statsCalls  int
	fetchCalls  int
	closeResult CloseResult
	stats       BillingStats
	fetchErr    error
	openErr     error
	movementErr error
}

func (b *fakeShiftBackend) FetchShiftState(context.Context) (ShiftState, error) {
	b.fetchCalls++
	if b.fetchErr != nil {
		return ShiftState{}, b.fetchErr
	}
	st := b.state
	st.Movements = append([]Movement(nil), b.state.Movements...)
	return st, nil
}

// OpenShift starts each shift one hour after the previous one.
func (b *fakeShiftBackend) OpenShift(_ context.Context, f decimal.Decimal) error {
	b.openCalls = append(b.openCalls, f)
	if b.openErr != nil {
		return b.openErr
	}
	if b.state.Open {
		return &BusinessRejection{Op: "abrir turno", Message: "Ya existe un turno abierto"}
	}
	start := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC).Add(time.Duration(len(b.openCalls)-1) * time.Hour)
	b.state = ShiftState{Open: true, StartedAt: &start, CashierName: "ana", OpeningFloat: f}
	return nil
}

func (b *fakeShiftBackend) CloseShift(_ context.Context, in CloseInput) (CloseResult, error) {
	b.closeCalls = append(b.closeCalls, in)
	b.state.Open = false
	return b.closeResult, nil
}

func (b *fakeShiftBackend) RegisterMovement(_ context.Context, in MovementInput) error {
	if b.movementErr != nil {
		return b.movementErr
	}
	b.movements = append(b.movements, in)
	b.state.Movements = append(b.state.Movements, Movement{
		Kind: in.Kind, Method: in.Method, Amount: in.Amount, Description: in.Description, InvoiceID: in.InvoiceID,
	})
	return nil
}

func (b *fakeShiftBackend) FetchBillingStats(context.Context) (BillingStats, error) {
	b.statsCalls++
	return b.stats, nil
}

func openShift(float string) (*ShiftSession, *fakeShiftBackend) {
	b := &fakeShiftBackend{state: ShiftState{Open: true, CashierName: "ana", OpeningFloat: dec(float)}}
	s := NewShiftSession(b)
	_, _ = s.Refresh(context.Background())
	return s, b
}

// ── Invoice backend ───────────────────────────────────────────────────────────

type fakeInvoiceBackend struct {
	requests []dto.FacturaRequest
	keys     []string
	nextID   int64
	err      error
	pdf      []byte
	pdfErr   error
}

func (b *fakeInvoiceBackend) SubmitInvoice(_ context.Context, key string, req dto.FacturaRequest) (*dto.FacturaBackendResponse, error) {
	b.keys = append(b.keys, key)
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	b.nextID++
	return &dto.FacturaBackendResponse{
		BackendEnvelope: dto.BackendEnvelope{Success: true},
		FacturaID:       b.nextID,
		NCF:             "B0200000001",
	}, nil
}

func (b *fakeInvoiceBackend) FetchInvoicePDF(context.Context, int64) ([]byte, error) {
	if b.pdfErr != nil {
		return nil, b.pdfErr
	}
	return b.pdf, nil
}

type fakeRecorder struct {
	calls []MovementInput
	err   error
}

func (r *fakeRecorder) RecordMovement(_ context.Context, in MovementInput) error {
	r.calls = append(r.calls, in)
	return r.err
}

// ── Journal ───────────────────────────────────────────────────────────────────

type memEnvioRepo struct {
	byKey map[string]*model.EnvioFactura
}

var _ repository.EnvioRepository = (*memEnvioRepo)(nil)

func newMemEnvioRepo() *memEnvioRepo {
	return &memEnvioRepo{byKey: make(map[string]*model.EnvioFactura)}
}

func (r *memEnvioRepo) Create(_ context.Context, e *model.EnvioFactura) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	r.byKey[e.IdempotencyKey] = e
	return nil
}

func (r *memEnvioRepo) Update(_ context.Context, e *model.EnvioFactura) error {
	r.byKey[e.IdempotencyKey] = e
	return nil
}

func (r *memEnvioRepo) FindByIdempotencyKey(_ context.Context, key string) (*model.EnvioFactura, error) {
	return r.byKey[key], nil
}

func (r *memEnvioRepo) FindByFacturaID(_ context.Context, id int64) (*model.EnvioFactura, error) {
	for _, e := range r.byKey {
		if e.FacturaID != nil && *e.FacturaID == id {
			return e, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *memEnvioRepo) ListPendingMovements(_ context.Context, now time.Time, limit int) ([]model.EnvioFactura, error) {
	var out []model.EnvioFactura
	for _, e := range r.byKey {
		if e.MovimientoEstado == model.MovimientoPendiente && (e.NextRetryAt == nil || !e.NextRetryAt.After(now)) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memEnvioRepo) ListRecent(_ context.Context, limit int) ([]model.EnvioFactura, error) {
	var out []model.EnvioFactura
	for _, e := range r.byKey {
		out = append(out, *e)
	}
	return out, nil
}

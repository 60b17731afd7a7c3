package pos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Catalog resolves codes and search terms to products.
type Catalog interface {
	Lookup(ctx context.Context, query string, exact bool) ([]Product, error)
}

// Submitter posts invoices. *InvoiceSubmitter implements it.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (*SubmitResult, error)
}

// Terminal owns the point-of-sale session: cart, discount, client, payment
// and barcode input, plus the cached shift. Every mutation goes through
// Dispatch; network calls run without holding the lock.
type Terminal struct {
	mu         sync.Mutex
	cart       *Cart
	discount   Discount
	party      Party
	payment    *PaymentFlow
	scanner    *Scanner
	shift      *ShiftSession
	catalog    Catalog
	submitter  Submitter
	rate       decimal.Decimal
	attemptKey string
	lastResult *SubmitResult
	lastErr    error

	now    func() time.Time
	newKey func() string
}

type TerminalDeps struct {
	Catalog   Catalog
	Shift     *ShiftSession
	Submitter Submitter
	Scanner   ScannerConfig
}

func NewTerminal(deps TerminalDeps) *Terminal {
	return &Terminal{
		cart:      NewCart(),
		discount:  NoDiscount(),
		party:     FinalConsumer(),
		payment:   NewPaymentFlow(),
		scanner:   NewScanner(deps.Scanner),
		shift:     deps.Shift,
		catalog:   deps.Catalog,
		submitter: deps.Submitter,
		rate:      TaxRate,
		now:       time.Now,
		newKey:    func() string { return uuid.NewString() },
	}
}

// ── Actions ───────────────────────────────────────────────────────────────────

// Action is one user intent applied to the session.
type Action interface {
	apply(ctx context.Context, t *Terminal) error
}

type AddProduct struct {
	Product  Product
	Quantity int
}

// ScanCode resolves Code against the catalog and adds it. A zero Quantity adds one unit.
type ScanCode struct {
	Code     string
	Quantity int
}

type SetQuantity struct {
	ProductID string
	Quantity  int
}

type RemoveLine struct{ ProductID string }

// AdjustLastTouched is the +/- keyboard shortcut.
type AdjustLastTouched struct{ Delta int }

type SetDiscount struct{ Discount Discount }

type SelectParty struct{ Party Party }

type SelectPayment struct{ Method PaymentMethod }

type SetReceived struct{ Amount decimal.Decimal }

type SetDueDate struct{ Date time.Time }

type CancelPayment struct{}

type SubmitInvoice struct{}

type ResetSale struct{}

func (a AddProduct) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error { return t.cart.AddLine(a.Product, a.Quantity) })
}

func (a ScanCode) apply(ctx context.Context, t *Terminal) error {
	p, err := t.resolve(ctx, a.Code)
	if err != nil {
		t.setErr(err)
		return err
	}
	qty := a.Quantity
	if qty <= 0 {
		qty = 1
	}
	return t.editSale(func() error { return t.cart.AddLine(p, qty) })
}

func (a SetQuantity) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error { return t.cart.SetQuantity(a.ProductID, a.Quantity) })
}

func (a RemoveLine) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error {
		t.cart.RemoveLine(a.ProductID)
		return nil
	})
}

func (a AdjustLastTouched) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error { return t.cart.AdjustLastTouched(a.Delta) })
}

func (a SetDiscount) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error {
		if err := a.Discount.Validate(); err != nil {
			return err
		}
		t.discount = a.Discount
		return nil
	})
}

func (a SelectParty) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error {
		if err := a.Party.validate(); err != nil {
			return err
		}
		t.party = a.Party
		return nil
	})
}

func (a SelectPayment) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error { return t.payment.Select(a.Method, t.now()) })
}

func (a SetReceived) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error { return t.payment.SetReceived(a.Amount) })
}

func (a SetDueDate) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error {
		t.payment.SetDueDate(a.Date)
		return nil
	})
}

func (CancelPayment) apply(_ context.Context, t *Terminal) error {
	return t.locked(func() error { return t.payment.Cancel() })
}

func (SubmitInvoice) apply(ctx context.Context, t *Terminal) error {
	return t.submit(ctx)
}

func (ResetSale) apply(_ context.Context, t *Terminal) error {
	return t.editSale(func() error {
		t.resetSaleLocked()
		return nil
	})
}

// Dispatch applies a and returns the resulting view along with a's error.
func (t *Terminal) Dispatch(ctx context.Context, a Action) (View, error) {
	err := a.apply(ctx, t)
	return t.View(), err
}

// View projects the current session for rendering.
func (t *Terminal) View() View {
	t.mu.Lock()
	st := SessionState{
		Lines:        t.cart.Lines(),
		LastTouched:  t.cart.LastTouched(),
		Discount:     t.discount,
		Party:        t.party,
		Method:       t.payment.Method(),
		PaymentState: t.payment.State(),
		Received:     t.payment.Received(),
		DueDate:      t.payment.DueDate(),
		PaymentErr:   t.payment.LastError(),
		LastResult:   t.lastResult,
		LastError:    t.lastErr,
		ManualScan:   t.scanner.Manual(),
		Rate:         t.rate,
		Now:          t.now(),
	}
	t.mu.Unlock()
	if t.shift != nil {
		st.Shift = t.shift.State()
	}
	return Project(st)
}

// ── Barcode input ─────────────────────────────────────────────────────────────

// ScanOutcome is the fate of one decoded code.
type ScanOutcome struct {
	Code string
	Err  error
}

// HandleKeys feeds keystrokes to the scanner and resolves every decoded code.
func (t *Terminal) HandleKeys(ctx context.Context, events []KeyEvent) []ScanOutcome {
	var out []ScanOutcome
	for _, ev := range events {
		code, ok := t.scanner.HandleKey(ev)
		if !ok {
			continue
		}
		err := ScanCode{Code: code}.apply(ctx, t)
		if err != nil {
			log.Warn().Err(err).Str("codigo", code).Msg("terminal: scanned code not added")
		}
		out = append(out, ScanOutcome{Code: code, Err: err})
	}
	return out
}

func (t *Terminal) SetManualScan(on bool) { t.scanner.SetManual(on) }

// Search serves the manual product search box.
func (t *Terminal) Search(ctx context.Context, term string) ([]Product, error) {
	return t.catalog.Lookup(ctx, term, false)
}

// resolve tries an exact lookup first and falls back to a fuzzy one.
func (t *Terminal) resolve(ctx context.Context, code string) (Product, error) {
	for _, exact := range []bool{true, false} {
		products, err := t.catalog.Lookup(ctx, code, exact)
		if err != nil {
			return Product{}, err
		}
		if len(products) > 0 {
			return products[0], nil
		}
	}
	return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, code)
}

// ── Submission ────────────────────────────────────────────────────────────────

func (t *Terminal) submit(ctx context.Context) error {
	t.mu.Lock()
	sub, err := t.prepareSubmitLocked()
	if err != nil {
		t.lastErr = err
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	var res *SubmitResult
	open, err := t.shift.IsOpen(ctx)
	if err == nil && !open {
		err = ErrRegisterClosed
	}
	if err == nil {
		sub.Shift = t.shift.State().Ref()
		res, err = t.submitter.Submit(ctx, sub)
	}
	if err == nil {
		if _, rerr := t.shift.Refresh(ctx); rerr != nil {
			log.Warn().Err(rerr).Msg("terminal: shift refresh after invoice failed")
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.payment.Fail(err)
		t.lastErr = err
		return err
	}
	t.lastResult = res
	t.attemptKey = ""
	t.cart.Reset()
	t.discount = NoDiscount()
	t.party = FinalConsumer()
	t.payment.Complete()
	t.lastErr = res.Movement
	return nil
}

func (t *Terminal) prepareSubmitLocked() (Submission, error) {
	if t.payment.State() == StateSubmitting {
		return Submission{}, ErrSubmissionInFlight
	}
	if t.cart.Empty() {
		return Submission{}, ErrEmptyCart
	}
	if err := t.party.validate(); err != nil {
		return Submission{}, err
	}
	totals := ComputeTotals(t.cart.Lines(), t.discount, t.rate)
	if err := t.payment.Validate(totals.Rounded().GrandTotal, t.now()); err != nil {
		return Submission{}, err
	}
	if err := t.payment.BeginSubmit(); err != nil {
		return Submission{}, err
	}
	if t.attemptKey == "" {
		t.attemptKey = t.newKey()
	}
	return Submission{
		IdempotencyKey: t.attemptKey,
		Lines:          t.cart.Lines(),
		Totals:         totals,
		Party:          t.party,
		Method:         t.payment.Method(),
		Received:       t.payment.Received(),
		DueDate:        t.payment.DueDate(),
	}, nil
}

// ── Locking helpers ───────────────────────────────────────────────────────────

func (t *Terminal) locked(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := fn()
	t.lastErr = err
	return err
}

// editSale mutates the sale in progress. The sale is frozen while an invoice
// is being submitted, and any edit starts a new submission attempt.
func (t *Terminal) editSale(fn func() error) error {
	return t.locked(func() error {
		switch t.payment.State() {
		case StateSubmitting:
			return ErrSubmissionInFlight
		case StateCompleted:
			t.payment.Reset()
			t.lastResult = nil
		}
		if err := fn(); err != nil {
			return err
		}
		t.attemptKey = ""
		return nil
	})
}

func (t *Terminal) setErr(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}

func (t *Terminal) resetSaleLocked() {
	t.cart.Reset()
	t.discount = NoDiscount()
	t.party = FinalConsumer()
	t.payment.Reset()
	t.lastResult = nil
	t.attemptKey = ""
}

// ErrorKind names the family of err for clients.
func ErrorKind(err error) string {
	var (
		ve *ValidationError
		te *TransportError
		br *BusinessRejection
		pf *PartialFailure
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pf):
		return "parcial"
	case errors.As(err, &ve), errors.Is(err, ErrEmptyCart), errors.Is(err, ErrEmptyCountUnconfirmed):
		return "validacion"
	case errors.Is(err, ErrProductNotFound):
		return "no_encontrado"
	case errors.As(err, &te):
		return "transporte"
	case errors.As(err, &br), errors.Is(err, ErrRegisterClosed), errors.Is(err, ErrShiftClosed),
		errors.Is(err, ErrMovementShiftChanged), errors.Is(err, ErrSubmissionInFlight):
		return "rechazo"
	default:
		return "interno"
	}
}

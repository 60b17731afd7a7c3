package pos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
	inner   Submitter
}

func (b *blockingSubmitter) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	close(b.started)
	<-b.release
	return b.inner.Submit(ctx, sub)
}

type testTerminal struct {
	*Terminal
	catalog *fakeCatalog
	shiftBE *fakeShiftBackend
	invoice *fakeInvoiceBackend
	journal *memEnvioRepo
}

func newTestTerminal(t *testing.T) *testTerminal {
	t.Helper()
	catalog := &fakeCatalog{
		exact: map[string]Product{soda.ID: soda, bread.ID: bread},
		fuzzy: []Product{soda, bread, coffee},
	}
	shift, shiftBE := openShift("1000")
	invoice := &fakeInvoiceBackend{}
	journal := newMemEnvioRepo()
	sub := NewInvoiceSubmitter(invoice, shift, journal, t.TempDir())
	term := NewTerminal(TerminalDeps{
		Catalog:   catalog,
		Shift:     shift,
		Submitter: sub,
		Scanner:   ScannerConfig{AfterFunc: (&fakeTimers{}).AfterFunc},
	})
	term.now = func() time.Time { return today }
	return &testTerminal{Terminal: term, catalog: catalog, shiftBE: shiftBE, invoice: invoice, journal: journal}
}

func TestScanResolvesExactThenFuzzy(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()

	v, err := tt.Dispatch(ctx, ScanCode{Code: soda.ID})
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, []bool{true}, tt.catalog.calls)

	tt.catalog.calls = nil
	v, err = tt.Dispatch(ctx, ScanCode{Code: "café"})
	require.NoError(t, err)
	assert.Len(t, v.Lines, 2)
	assert.Equal(t, []bool{true, false}, tt.catalog.calls)
}

func TestScanNotFoundLeavesCartUnchanged(t *testing.T) {
	tt := newTestTerminal(t)
	v, err := tt.Dispatch(context.Background(), ScanCode{Code: "000000"})
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, v.Lines)
	assert.Equal(t, "no_encontrado", v.ErrorKind)
}

func TestScanTransportErrorIsDistinct(t *testing.T) {
	tt := newTestTerminal(t)
	tt.catalog.err = &TransportError{Op: "productos", Err: errors.New("connection refused")}

	v, err := tt.Dispatch(context.Background(), ScanCode{Code: soda.ID})
	assert.False(t, errors.Is(err, ErrProductNotFound))
	assert.Equal(t, "transporte", v.ErrorKind)
	assert.Empty(t, v.Lines)
}

func TestHandleKeysAddsScannedProduct(t *testing.T) {
	tt := newTestTerminal(t)
	var events []KeyEvent
	for _, r := range soda.ID {
		events = append(events, KeyEvent{Key: string(r), Source: SourceAmbient})
	}
	events = append(events, KeyEvent{Key: KeyEnter, Source: SourceAmbient})

	out := tt.HandleKeys(context.Background(), events)
	require.Len(t, out, 1)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, 1, tt.View().Lines[0].Quantity)
}

func TestSubmitBlockedWhenRegisterClosed(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	_, err := tt.Dispatch(ctx, AddProduct{Product: soda, Quantity: 2})
	require.NoError(t, err)
	_, err = tt.Dispatch(ctx, SetReceived{Amount: dec("200")})
	require.NoError(t, err)

	tt.shiftBE.state.Open = false
	v, err := tt.Dispatch(ctx, SubmitInvoice{})
	assert.ErrorIs(t, err, ErrRegisterClosed)
	assert.Equal(t, StateFailed, v.Payment.State)
	assert.Len(t, v.Lines, 1, "cart is preserved")
	assert.Empty(t, tt.invoice.requests)
}

func TestSubmitBindsJournalToCurrentShift(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	id := int64(12)
	start := today.Add(-2 * time.Hour)
	tt.shiftBE.state.ShiftID = &id
	tt.shiftBE.state.StartedAt = &start

	_, _ = tt.Dispatch(ctx, AddProduct{Product: soda})
	_, _ = tt.Dispatch(ctx, SelectPayment{Method: MethodCard})
	_, err := tt.Dispatch(ctx, SubmitInvoice{})
	require.NoError(t, err)

	require.Len(t, tt.journal.byKey, 1)
	for _, rec := range tt.journal.byKey {
		require.NotNil(t, rec.TurnoID)
		assert.Equal(t, id, *rec.TurnoID)
		require.NotNil(t, rec.TurnoInicio)
		assert.True(t, rec.TurnoInicio.Equal(start))
	}
	require.Len(t, tt.shiftBE.movements, 1)
	assert.Equal(t, &id, tt.shiftBE.movements[0].Shift.ID)
}

func TestSubmitInsufficientCashNeverReachesNetwork(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	_, _ = tt.Dispatch(ctx, AddProduct{Product: soda, Quantity: 2})
	_, _ = tt.Dispatch(ctx, SetReceived{Amount: dec("100")})

	v, err := tt.Dispatch(ctx, SubmitInvoice{})
	assert.True(t, IsValidation(err))
	assert.Equal(t, "validacion", v.ErrorKind)
	assert.Empty(t, tt.invoice.requests)
	assert.Equal(t, StateAwaitingCashInput, v.Payment.State)
}

func TestSubmitCompletesAndResetsSale(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	_, _ = tt.Dispatch(ctx, AddProduct{Product: Product{ID: "x", Name: "X", Price: dec("118"), Taxable: true}})
	_, _ = tt.Dispatch(ctx, AddProduct{Product: bread})
	_, _ = tt.Dispatch(ctx, SetDiscount{Discount: Discount{Amount: dec("0"), Kind: DiscountFixed}})
	v, err := tt.Dispatch(ctx, SetReceived{Amount: dec("300")})
	require.NoError(t, err)
	assert.Equal(t, "218", v.Totals.GrandTotal.String())
	assert.Equal(t, "82", v.Payment.Change.String())
	assert.True(t, v.Payment.CanSubmit)

	v, err = tt.Dispatch(ctx, SubmitInvoice{})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, v.Payment.State)
	assert.Empty(t, v.Lines)
	assert.Equal(t, "cf", v.Party.ID)
	require.NotNil(t, v.LastInvoice)
	assert.Equal(t, "82", v.LastInvoice.Change.String())
	require.Len(t, tt.shiftBE.movements, 1)

	v, err = tt.Dispatch(ctx, AddProduct{Product: soda})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCashInput, v.Payment.State)
	assert.Nil(t, v.LastInvoice)
}

func TestSubmitFailureKeepsIdempotencyKeyForRetry(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	_, _ = tt.Dispatch(ctx, AddProduct{Product: soda})
	_, _ = tt.Dispatch(ctx, SelectPayment{Method: MethodCard})

	tt.invoice.err = &TransportError{Op: "facturas", Err: errors.New("timeout")}
	_, err := tt.Dispatch(ctx, SubmitInvoice{})
	require.Error(t, err)

	tt.invoice.err = nil
	_, err = tt.Dispatch(ctx, SubmitInvoice{})
	require.NoError(t, err)
	require.Len(t, tt.invoice.keys, 2)
	assert.Equal(t, tt.invoice.keys[0], tt.invoice.keys[1])
}

func TestEditAfterFailureStartsNewAttempt(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	_, _ = tt.Dispatch(ctx, AddProduct{Product: soda})
	_, _ = tt.Dispatch(ctx, SelectPayment{Method: MethodCard})

	tt.invoice.err = &BusinessRejection{Message: "Stock insuficiente"}
	_, err := tt.Dispatch(ctx, SubmitInvoice{})
	require.Error(t, err)

	_, _ = tt.Dispatch(ctx, SetQuantity{ProductID: soda.ID, Quantity: 2})
	tt.invoice.err = nil
	_, err = tt.Dispatch(ctx, SubmitInvoice{})
	require.NoError(t, err)
	assert.NotEqual(t, tt.invoice.keys[0], tt.invoice.keys[1])
}

func TestSecondSubmitWhileInFlightIsRejected(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	_, _ = tt.Dispatch(ctx, AddProduct{Product: soda})
	_, _ = tt.Dispatch(ctx, SelectPayment{Method: MethodTransfer})

	blocker := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{}), inner: tt.submitter}
	tt.submitter = blocker

	done := make(chan error, 1)
	go func() {
		_, err := tt.Dispatch(ctx, SubmitInvoice{})
		done <- err
	}()
	<-blocker.started

	_, err := tt.Dispatch(ctx, SubmitInvoice{})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = tt.Dispatch(ctx, AddProduct{Product: bread})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(blocker.release)
	require.NoError(t, <-done)
	assert.Len(t, tt.invoice.requests, 1)
}

func TestSupplierSelectionAndReset(t *testing.T) {
	tt := newTestTerminal(t)
	ctx := context.Background()
	supplier := Party{ID: "7", Name: "Distribuidora Sol", TaxID: "1-01-00000-1", Role: RoleSupplier}

	v, err := tt.Dispatch(ctx, SelectParty{Party: supplier})
	require.NoError(t, err)
	assert.Equal(t, RoleSupplier, v.Party.Role)

	_, err = tt.Dispatch(ctx, SelectParty{Party: Party{Name: "sin id"}})
	assert.True(t, IsValidation(err))

	v, err = tt.Dispatch(ctx, ResetSale{})
	require.NoError(t, err)
	assert.Equal(t, FinalConsumer(), v.Party)
}

func TestProjectIsPure(t *testing.T) {
	st := SessionState{
		Lines:        []CartLine{{ProductID: "a", Name: "A", UnitPrice: dec("59"), Quantity: 2, Taxable: true}},
		LastTouched:  "a",
		Discount:     NoDiscount(),
		Party:        FinalConsumer(),
		Method:       MethodCash,
		PaymentState: StateAwaitingCashInput,
		Received:     dec("200"),
		Shift:        ShiftState{Open: true, OpeningFloat: dec("1000")},
		Now:          today,
	}
	a, b := Project(st), Project(st)
	assert.Equal(t, a, b)
	assert.Equal(t, "118", a.Totals.GrandTotal.String())
	assert.Equal(t, "18", a.Lines[0].Tax.String())
	assert.True(t, a.Lines[0].LastTouched)
	assert.Equal(t, "82", a.Payment.Change.String())
	assert.True(t, a.Payment.CanSubmit)
	assert.Equal(t, "1000", a.Shift.ExpectedCash.String())

	st.Shift.Open = false
	assert.Equal(t, ErrRegisterClosed.Error(), Project(st).Payment.Blocker)
}

func TestProjectLastInvoiceMovementError(t *testing.T) {
	st := SessionState{Discount: NoDiscount(), Party: FinalConsumer(), Now: today}
	st.LastResult = &SubmitResult{InvoiceID: 3, Total: dec("118")}
	require.NotNil(t, Project(st).LastInvoice)
	assert.Empty(t, Project(st).LastInvoice.MovementError)

	st.LastResult.Movement = &PartialFailure{InvoiceID: 3, Step: "movimiento de caja", Err: errors.New("timeout")}
	assert.Equal(t, "Movimiento no registrado en caja. Contacte soporte", Project(st).LastInvoice.MovementError)
}

package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod values are the backend's metodo_pago strings.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "efectivo"
	MethodCard     PaymentMethod = "tarjeta"
	MethodTransfer PaymentMethod = "transferencia"
	MethodCredit   PaymentMethod = "credito"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodCredit:
		return true
	}
	return false
}

// PaymentState is a node of the payment flow.
type PaymentState string

const (
	StateSelectingMethod         PaymentState = "seleccionando_metodo"
	StateAwaitingCashInput       PaymentState = "esperando_efectivo"
	StateAwaitingCardValidation  PaymentState = "esperando_tarjeta"
	StateAwaitingTransferConfirm PaymentState = "esperando_transferencia"
	StateAwaitingCreditTerms     PaymentState = "esperando_credito"
	StateSubmitting              PaymentState = "enviando"
	StateCompleted               PaymentState = "completada"
	StateFailed                  PaymentState = "fallida"
)

const defaultCreditDays = 7

var awaitingState = map[PaymentMethod]PaymentState{
	MethodCash:     StateAwaitingCashInput,
	MethodCard:     StateAwaitingCardValidation,
	MethodTransfer: StateAwaitingTransferConfirm,
	MethodCredit:   StateAwaitingCreditTerms,
}

// PaymentFlow tracks how the current sale will be paid.
type PaymentFlow struct {
	method   PaymentMethod
	state    PaymentState
	received decimal.Decimal
	dueDate  time.Time
	lastErr  error
}

// NewPaymentFlow starts on cash, the method preselected at the register.
func NewPaymentFlow() *PaymentFlow {
	p := &PaymentFlow{}
	p.Reset()
	return p
}

func (p *PaymentFlow) Method() PaymentMethod     { return p.method }
func (p *PaymentFlow) State() PaymentState       { return p.state }
func (p *PaymentFlow) Received() decimal.Decimal { return p.received }
func (p *PaymentFlow) DueDate() time.Time        { return p.dueDate }
func (p *PaymentFlow) LastError() error          { return p.lastErr }

// Select moves to the awaiting state of m. now is used to prefill the
// credit due date.
func (p *PaymentFlow) Select(m PaymentMethod, now time.Time) error {
	if p.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	st, ok := awaitingState[m]
	if !ok {
		return invalid("metodo_pago", "Método de pago inválido")
	}
	p.method = m
	p.state = st
	p.lastErr = nil
	if m == MethodCredit && p.dueDate.IsZero() {
		p.dueDate = dateOnly(now).AddDate(0, 0, defaultCreditDays)
	}
	return nil
}

func (p *PaymentFlow) SetReceived(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return invalid("monto_recibido", "Monto recibido inválido")
	}
	p.received = amount
	return nil
}

func (p *PaymentFlow) SetDueDate(d time.Time) {
	p.dueDate = dateOnly(d)
}

// Change is the cash returned to the customer, never negative.
func (p *PaymentFlow) Change(total decimal.Decimal) decimal.Decimal {
	if p.method != MethodCash {
		return decimal.Zero
	}
	return decimal.Max(p.received.Sub(total), decimal.Zero)
}

// Validate returns the reason the current payment cannot be submitted for
// total, or nil.
func (p *PaymentFlow) Validate(total decimal.Decimal, now time.Time) error {
	if !total.IsPositive() {
		return invalid("total", "El total debe ser mayor que cero")
	}
	switch p.method {
	case MethodCash:
		if p.received.LessThan(total) {
			return invalid("monto_recibido", "El monto recibido es menor que el total")
		}
	case MethodCredit:
		if p.dueDate.IsZero() || !dateOnly(p.dueDate).After(dateOnly(now)) {
			return invalid("fecha_vencimiento", "La fecha de vencimiento debe ser posterior a hoy")
		}
	}
	return nil
}

func (p *PaymentFlow) CanSubmit(total decimal.Decimal, now time.Time) bool {
	if p.state == StateSubmitting || p.state == StateCompleted || p.state == StateSelectingMethod {
		return false
	}
	return p.Validate(total, now) == nil
}

// BeginSubmit enters Submitting. Only an awaiting state or Failed may submit.
func (p *PaymentFlow) BeginSubmit() error {
	switch p.state {
	case StateSubmitting:
		return ErrSubmissionInFlight
	case StateSelectingMethod, StateCompleted:
		return invalid("metodo_pago", "Seleccione un método de pago")
	}
	p.state = StateSubmitting
	p.lastErr = nil
	return nil
}

func (p *PaymentFlow) Complete() {
	p.state = StateCompleted
	p.lastErr = nil
}

// Fail records err and leaves the flow retryable.
func (p *PaymentFlow) Fail(err error) {
	p.state = StateFailed
	p.lastErr = err
}

// Cancel goes back to method selection, keeping the cart intact.
func (p *PaymentFlow) Cancel() error {
	if p.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	p.state = StateSelectingMethod
	p.lastErr = nil
	return nil
}

func (p *PaymentFlow) Reset() {
	p.method = MethodCash
	p.state = StateAwaitingCashInput
	p.received = decimal.Zero
	p.dueDate = time.Time{}
	p.lastErr = nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package pos

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

func TestPaymentStartsOnCash(t *testing.T) {
	p := NewPaymentFlow()
	assert.Equal(t, MethodCash, p.Method())
	assert.Equal(t, StateAwaitingCashInput, p.State())
}

func TestCashRequiresReceivedAtLeastTotal(t *testing.T) {
	p := NewPaymentFlow()
	require.NoError(t, p.SetReceived(dec("200")))
	assert.True(t, IsValidation(p.Validate(dec("218"), today)))
	assert.False(t, p.CanSubmit(dec("218"), today))

	require.NoError(t, p.SetReceived(dec("300")))
	assert.NoError(t, p.Validate(dec("218"), today))
	assert.Equal(t, "82", p.Change(dec("218")).String())
}

func TestChangeNeverNegative(t *testing.T) {
	p := NewPaymentFlow()
	require.NoError(t, p.SetReceived(dec("10")))
	assert.True(t, p.Change(dec("50")).IsZero())
}

func TestZeroTotalCannotSubmit(t *testing.T) {
	p := NewPaymentFlow()
	require.NoError(t, p.Select(MethodCard, today))
	assert.True(t, IsValidation(p.Validate(dec("0"), today)))
}

func TestCreditDueDateMustBeAfterToday(t *testing.T) {
	p := NewPaymentFlow()
	require.NoError(t, p.Select(MethodCredit, today))
	assert.Equal(t, StateAwaitingCreditTerms, p.State())
	assert.Equal(t, "2026-10-24", p.DueDate().Format("2006-01-02"))

	p.SetDueDate(today)
	assert.True(t, IsValidation(p.Validate(dec("100"), today)))

	p.SetDueDate(today.AddDate(0, 0, 1))
	assert.NoError(t, p.Validate(dec("100"), today))
}

func TestSelectMovesToAwaitingState(t *testing.T) {
	p := NewPaymentFlow()
	cases := map[PaymentMethod]PaymentState{
		MethodCash:     StateAwaitingCashInput,
		MethodCard:     StateAwaitingCardValidation,
		MethodTransfer: StateAwaitingTransferConfirm,
		MethodCredit:   StateAwaitingCreditTerms,
	}
	for m, st := range cases {
		require.NoError(t, p.Select(m, today))
		assert.Equal(t, st, p.State())
	}
	assert.True(t, IsValidation(p.Select("cheque", today)))
}

func TestSubmitTransitions(t *testing.T) {
	p := NewPaymentFlow()
	require.NoError(t, p.BeginSubmit())
	assert.Equal(t, StateSubmitting, p.State())

	assert.ErrorIs(t, p.BeginSubmit(), ErrSubmissionInFlight)
	assert.ErrorIs(t, p.Cancel(), ErrSubmissionInFlight)
	assert.ErrorIs(t, p.Select(MethodCard, today), ErrSubmissionInFlight)

	boom := errors.New("boom")
	p.Fail(boom)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, boom, p.LastError())

	require.NoError(t, p.BeginSubmit(), "a failed submission can be retried")
	p.Complete()
	assert.Equal(t, StateCompleted, p.State())
	assert.Error(t, p.BeginSubmit())
}

func TestCancelReturnsToMethodSelection(t *testing.T) {
	p := NewPaymentFlow()
	require.NoError(t, p.Select(MethodTransfer, today))
	require.NoError(t, p.Cancel())
	assert.Equal(t, StateSelectingMethod, p.State())
	assert.False(t, p.CanSubmit(dec("10"), today))
}

package infra

import (
	"net/smtp"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cajapos/internal/config"
	"cajapos/internal/pos"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *pos.ShiftReport {
	id := int64(3)
	start := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	st := pos.ShiftState{
		OpeningFloat: decimal.NewFromInt(1000),
		Movements: []pos.Movement{
			{Kind: pos.MovementSale, Method: pos.MethodCash, Amount: decimal.NewFromInt(118), Description: "Factura #9 - Consumidor Final"},
			{Kind: pos.MovementExpense, Method: pos.MethodCash, Amount: decimal.NewFromInt(50), Description: "Compra de hielo para la nevera del colmado"},
		},
	}
	return &pos.ShiftReport{
		ShiftID:        &id,
		CashierName:    "Ana Núñez",
		StartedAt:      &start,
		EndedAt:        start.Add(9 * time.Hour),
		OpeningFloat:   st.OpeningFloat,
		Reconciliation: st.Reconcile(decimal.NewFromInt(1060), decimal.Zero),
		Stats:          pos.BillingStats{InvoiceCount: 1, InvoiceTotal: decimal.NewFromInt(118)},
		Movements:      st.Movements,
		Notes:          "Sin novedad",
	}
}

func TestGenerateShiftReportPDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reportes")
	path, err := GenerateShiftReportPDF(sampleReport(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cierre_turno_3.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data[:5]))
}

func TestShiftReportBody(t *testing.T) {
	body := ShiftReportBody(sampleReport())
	assert.Contains(t, body, "esperado 1068.00, contado 1060.00 (- 8.00)")
	assert.Contains(t, body, "Facturas: 1 por 118.00")
	assert.Equal(t, "Cierre de caja 17/10/2026 - Ana Núñez", ShiftReportSubject(sampleReport()))
}

func TestMailerSendReport(t *testing.T) {
	m := NewMailer(&config.Config{SMTPHost: "smtp.local", SMTPPort: 587, SMTPUser: "caja@colmado.do"})
	var sent *email.Email
	var addr string
	m.send = func(e *email.Email, a string, _ smtp.Auth) error {
		sent, addr = e, a
		return nil
	}

	pdf, err := GenerateShiftReportPDF(sampleReport(), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.SendReport([]string{"dueno@colmado.do"}, "asunto", "cuerpo", pdf))

	assert.Equal(t, "smtp.local:587", addr)
	assert.Equal(t, []string{"dueno@colmado.do"}, sent.To)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "cierre_turno_3.pdf", sent.Attachments[0].Filename)
}

func TestMailerDisabledWithoutHost(t *testing.T) {
	m := NewMailer(&config.Config{})
	assert.ErrorIs(t, m.SendReport([]string{"x@y.z"}, "s", "b", ""), ErrMailerDisabled)
}

package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is a snapshot of everything the cashier screen shows.
type SessionState struct {
	Lines        []CartLine
	LastTouched  string
	Discount     Discount
	Party        Party
	Method       PaymentMethod
	PaymentState PaymentState
	Received     decimal.Decimal
	DueDate      time.Time
	PaymentErr   error
	Shift        ShiftState
	ManualScan   bool
	LastResult   *SubmitResult
	LastError    error
	Rate         decimal.Decimal
	Now          time.Time
}

type LineView struct {
	ProductID   string          `json:"producto_id"`
	Name        string          `json:"nombre"`
	UnitPrice   decimal.Decimal `json:"precio"`
	Quantity    int             `json:"cantidad"`
	Taxable     bool            `json:"itbis"`
	LineTotal   decimal.Decimal `json:"total_linea"`
	Tax         decimal.Decimal `json:"itbis_linea"`
	LastTouched bool            `json:"seleccionada"`
}

type PaymentView struct {
	Method    PaymentMethod   `json:"metodo"`
	State     PaymentState    `json:"estado"`
	Received  decimal.Decimal `json:"monto_recibido"`
	Change    decimal.Decimal `json:"cambio"`
	DueDate   string          `json:"fecha_vencimiento,omitempty"`
	CanSubmit bool            `json:"puede_facturar"`
	Blocker   string          `json:"bloqueo,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type ShiftView struct {
	Open         bool            `json:"abierto"`
	Cashier      string          `json:"cajero"`
	OpeningFloat decimal.Decimal `json:"monto_inicial"`
	ExpectedCash decimal.Decimal `json:"efectivo_esperado"`
	ExpectedCard decimal.Decimal `json:"tarjeta_esperado"`
	InvoiceCount int             `json:"total_facturas"`
	InvoiceTotal decimal.Decimal `json:"total_facturado"`
}

type InvoiceView struct {
	InvoiceID         int64           `json:"factura_id"`
	NCF               string          `json:"ncf"`
	AuthorizationCode string          `json:"codigo_autorizacion,omitempty"`
	Total             decimal.Decimal `json:"total"`
	Change            decimal.Decimal `json:"cambio"`
	Warning           string          `json:"advertencia,omitempty"`
	MovementError     string          `json:"movimiento_error,omitempty"`
	PDFPath           string          `json:"pdf,omitempty"`
	PDFUnavailable    bool            `json:"pdf_no_disponible,omitempty"`
	Replayed          bool            `json:"repetida,omitempty"`
}

// View is the render-ready projection of a SessionState.
type View struct {
	Lines       []LineView   `json:"lineas"`
	Totals      Totals       `json:"totales"`
	Discount    Discount     `json:"descuento"`
	Party       Party        `json:"cliente"`
	Payment     PaymentView  `json:"pago"`
	Shift       ShiftView    `json:"caja"`
	ManualScan  bool         `json:"escaner_manual"`
	LastInvoice *InvoiceView `json:"ultima_factura,omitempty"`
	Error       string       `json:"error,omitempty"`
	ErrorKind   string       `json:"tipo_error,omitempty"`
}

// Project derives the view. It has no side effects.
func Project(s SessionState) View {
	rate := s.Rate
	if rate.IsZero() {
		rate = TaxRate
	}
	totals := ComputeTotals(s.Lines, s.Discount, rate).Rounded()

	lines := make([]LineView, 0, len(s.Lines))
	for _, l := range s.Lines {
		lt := lineTax(l, rate)
		lines = append(lines, LineView{
			ProductID:   l.ProductID,
			Name:        l.Name,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			Taxable:     l.Taxable,
			LineTotal:   lt.LineTotal.Round(2),
			Tax:         lt.Tax.Round(2),
			LastTouched: l.ProductID == s.LastTouched,
		})
	}

	v := View{
		Lines:      lines,
		Totals:     totals,
		Discount:   s.Discount,
		Party:      s.Party,
		Payment:    projectPayment(s, totals.GrandTotal),
		Shift:      projectShift(s.Shift),
		ManualScan: s.ManualScan,
		Error:      errText(s.LastError),
		ErrorKind:  ErrorKind(s.LastError),
	}
	if r := s.LastResult; r != nil {
		v.LastInvoice = &InvoiceView{
			InvoiceID:         r.InvoiceID,
			NCF:               r.NCF,
			AuthorizationCode: r.AuthorizationCode,
			Total:             r.Total,
			Change:            r.Change,
			Warning:           r.Warning,
			PDFPath:           r.PDFPath,
			PDFUnavailable:    r.PDFErr != nil,
			Replayed:          r.Replayed,
		}
		if r.Movement != nil {
			v.LastInvoice.MovementError = "Movimiento no registrado en caja. Contacte soporte"
		}
	}
	return v
}

func projectPayment(s SessionState, total decimal.Decimal) PaymentView {
	p := PaymentFlow{method: s.Method, state: s.PaymentState, received: s.Received, dueDate: s.DueDate}
	pv := PaymentView{
		Method:    s.Method,
		State:     s.PaymentState,
		Received:  s.Received,
		Change:    p.Change(total),
		CanSubmit: len(s.Lines) > 0 && s.Shift.Open && p.CanSubmit(total, s.Now),
		Error:     errText(s.PaymentErr),
	}
	if !s.DueDate.IsZero() {
		pv.DueDate = s.DueDate.Format(dueDateLayout)
	}
	switch {
	case !s.Shift.Open:
		pv.Blocker = ErrRegisterClosed.Error()
	case len(s.Lines) > 0:
		pv.Blocker = errText(p.Validate(total, s.Now))
	}
	return pv
}

func projectShift(st ShiftState) ShiftView {
	return ShiftView{
		Open:         st.Open,
		Cashier:      st.CashierName,
		OpeningFloat: st.OpeningFloat,
		ExpectedCash: st.ExpectedCash(),
		ExpectedCard: st.ExpectedCard(),
		InvoiceCount: st.Stats.InvoiceCount,
		InvoiceTotal: st.Stats.InvoiceTotal,
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package pos

import (
	"github.com/shopspring/decimal"
)

// TaxRate is the ITBIS rate embedded in taxable shelf prices.
var TaxRate = decimal.NewFromFloat(0.18)

var hundred = decimal.NewFromInt(100)

// DiscountKind selects how Discount.Amount is interpreted.
type DiscountKind string

const (
	DiscountFixed      DiscountKind = "fijo"
	DiscountPercentage DiscountKind = "porcentaje"
)

// Discount applies to the pre-tax subtotal only.
type Discount struct {
	Amount decimal.Decimal `json:"monto"`
	Kind   DiscountKind    `json:"tipo"`
}

// NoDiscount is the value a sale starts with and returns to on reset.
func NoDiscount() Discount {
	return Discount{Amount: decimal.Zero, Kind: DiscountFixed}
}

func (d Discount) Validate() error {
	if d.Amount.IsNegative() {
		return invalid("descuento", "El descuento no puede ser negativo")
	}
	switch d.Kind {
	case DiscountFixed:
	case DiscountPercentage:
		if d.Amount.GreaterThan(hundred) {
			return invalid("descuento", "El porcentaje no puede superar 100")
		}
	default:
		return invalid("tipo", "Tipo de descuento inválido")
	}
	return nil
}

// Apply returns the amount subtracted from subtotal, never more than subtotal.
func (d Discount) Apply(subtotal decimal.Decimal) decimal.Decimal {
	if d.Amount.IsZero() || !subtotal.IsPositive() {
		return decimal.Zero
	}
	if d.Kind == DiscountPercentage {
		return subtotal.Mul(d.Amount).Div(hundred)
	}
	return decimal.Min(d.Amount, subtotal)
}

// DecomposeTaxInclusive splits a tax-inclusive amount into its base and tax.
func DecomposeTaxInclusive(amount, rate decimal.Decimal) (base, tax decimal.Decimal) {
	base = amount.Div(decimal.NewFromInt(1).Add(rate))
	return base, amount.Sub(base)
}

// Totals is the derived money summary of a cart.
type Totals struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountAmount        decimal.Decimal `json:"descuento"`
	SubtotalAfterDiscount decimal.Decimal `json:"subtotal_con_descuento"`
	TaxTotal              decimal.Decimal `json:"itbis_total"`
	GrandTotal            decimal.Decimal `json:"total"`
}

// Rounded returns the two-decimal form used for display and the wire.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:              t.Subtotal.Round(2),
		DiscountAmount:        t.DiscountAmount.Round(2),
		SubtotalAfterDiscount: t.SubtotalAfterDiscount.Round(2),
		TaxTotal:              t.TaxTotal.Round(2),
		GrandTotal:            t.GrandTotal.Round(2),
	}
}

// LineTax is the per-line breakdown of a tax-inclusive line total.
type LineTax struct {
	LineTotal decimal.Decimal
	Base      decimal.Decimal
	Tax       decimal.Decimal
}

// lineTax decomposes a line; non-taxable lines are all base.
func lineTax(l CartLine, rate decimal.Decimal) LineTax {
	total := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	if !l.Taxable {
		return LineTax{LineTotal: total, Base: total, Tax: decimal.Zero}
	}
	base, tax := DecomposeTaxInclusive(total, rate)
	return LineTax{LineTotal: total, Base: base, Tax: tax}
}

// ComputeTotals derives totals from lines. Tax is not recomputed after the
// discount: grandTotal = (subtotal - discount) + taxTotal.
func ComputeTotals(lines []CartLine, d Discount, rate decimal.Decimal) Totals {
	subtotal, taxTotal := decimal.Zero, decimal.Zero
	for _, l := range lines {
		lt := lineTax(l, rate)
		subtotal = subtotal.Add(lt.Base)
		taxTotal = taxTotal.Add(lt.Tax)
	}
	discount := d.Apply(subtotal)
	after := subtotal.Sub(discount)
	return Totals{
		Subtotal:              subtotal,
		DiscountAmount:        discount,
		SubtotalAfterDiscount: after,
		TaxTotal:              taxTotal,
		GrandTotal:            after.Add(taxTotal),
	}
}

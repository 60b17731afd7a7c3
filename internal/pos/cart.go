package pos

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a catalog item as returned by the product lookup.
// Stock is nil when the backend does not track inventory for it.
type Product struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Taxable bool            `json:"itbis"`
	Stock   *int            `json:"stock,omitempty"`
}

// CartLine is one product row of the sale in progress.
type CartLine struct {
	ProductID string          `json:"producto_id"`
	Name      string          `json:"nombre"`
	UnitPrice decimal.Decimal `json:"precio"`
	Quantity  int             `json:"cantidad"`
	Taxable   bool            `json:"itbis"`
	StockHint *int            `json:"stock,omitempty"`
}

// Cart holds the ordered lines of one sale. Not safe for concurrent use;
// the Terminal serializes access.
type Cart struct {
	lines       []CartLine
	lastTouched string
}

func NewCart() *Cart { return &Cart{} }

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddLine inserts product with qty units or increments its existing line.
func (c *Cart) AddLine(p Product, qty int) error {
	if qty <= 0 {
		qty = 1
	}
	if p.ID == "" || p.Name == "" {
		return invalid("producto", "Producto inválido")
	}
	if p.Price.IsNegative() {
		return invalid("precio", "Precio inválido")
	}
	if p.Stock != nil && *p.Stock <= 0 {
		return invalid("stock", fmt.Sprintf("%s sin stock disponible", p.Name))
	}

	if i := c.index(p.ID); i >= 0 {
		next := c.lines[i].Quantity + qty
		if p.Stock != nil && next > *p.Stock {
			return invalid("stock", fmt.Sprintf("Stock insuficiente para %s (disponible: %d)", p.Name, *p.Stock))
		}
		c.lines[i].Quantity = next
		if p.Stock != nil {
			c.lines[i].StockHint = p.Stock
		}
		c.lastTouched = p.ID
		return nil
	}

	if p.Stock != nil && qty > *p.Stock {
		return invalid("stock", fmt.Sprintf("Stock insuficiente para %s (disponible: %d)", p.Name, *p.Stock))
	}
	c.lines = append(c.lines, CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
		Taxable:   p.Taxable,
		StockHint: p.Stock,
	})
	c.lastTouched = p.ID
	return nil
}

// SetQuantity replaces a line's quantity. n < 1 removes the line; n above the
// stock hint is clamped to it.
func (c *Cart) SetQuantity(productID string, n int) error {
	i := c.index(productID)
	if i < 0 {
		return invalid("producto_id", "El producto no está en el carrito")
	}
	if n < 1 {
		c.RemoveLine(productID)
		return nil
	}
	if hint := c.lines[i].StockHint; hint != nil && n > *hint {
		n = *hint
	}
	c.lines[i].Quantity = n
	c.lastTouched = productID
	return nil
}

// RemoveLine deletes the line. When it was the last touched, the line before
// it (or the new first line) takes over.
func (c *Cart) RemoveLine(productID string) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	if c.lastTouched != productID {
		return
	}
	switch {
	case len(c.lines) == 0:
		c.lastTouched = ""
	case i > 0:
		c.lastTouched = c.lines[i-1].ProductID
	default:
		c.lastTouched = c.lines[0].ProductID
	}
}

// AdjustLastTouched applies delta to the last-touched line's quantity.
func (c *Cart) AdjustLastTouched(delta int) error {
	if c.lastTouched == "" {
		return invalid("carrito", "No hay producto seleccionado")
	}
	i := c.index(c.lastTouched)
	return c.SetQuantity(c.lastTouched, c.lines[i].Quantity+delta)
}

// LastTouched returns the product id the keyboard shortcuts act on.
func (c *Cart) LastTouched() string { return c.lastTouched }

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int    { return len(c.lines) }
func (c *Cart) Empty() bool { return len(c.lines) == 0 }

func (c *Cart) Reset() {
	c.lines = nil
	c.lastTouched = ""
}

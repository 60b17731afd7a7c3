package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	soda   = Product{ID: "750100", Name: "Refresco", Price: dec("59.00"), Taxable: true}
	bread  = Product{ID: "750200", Name: "Pan", Price: dec("100.00"), Taxable: false}
	coffee = Product{ID: "750300", Name: "Café", Price: dec("25.00"), Taxable: true, Stock: intPtr(2)}
)

func TestAddLineTwiceIncrementsQuantity(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(soda, 1))
	require.NoError(t, c.AddLine(soda, 1))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, soda.ID, c.LastTouched())
}

func TestAddLineDefaultsQuantityToOne(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(bread, 0))
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestAddLineRejectsInvalidProduct(t *testing.T) {
	c := NewCart()
	err := c.AddLine(Product{ID: "1"}, 1)
	assert.True(t, IsValidation(err))
	assert.True(t, c.Empty())
}

func TestAddLineRejectsOutOfStock(t *testing.T) {
	c := NewCart()
	err := c.AddLine(Product{ID: "9", Name: "Agotado", Price: dec("10"), Stock: intPtr(0)}, 1)
	assert.True(t, IsValidation(err))
	assert.True(t, c.Empty())
}

func TestAddLineBeyondStockLeavesCartUnchanged(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(coffee, 1))
	require.NoError(t, c.AddLine(coffee, 1))

	err := c.AddLine(coffee, 1)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 2, c.Lines()[0].Quantity)
}

func TestSetQuantityBelowOneRemovesLine(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(soda, 3))
	require.NoError(t, c.SetQuantity(soda.ID, 0))
	assert.True(t, c.Empty())
	assert.Empty(t, c.LastTouched())
}

func TestSetQuantityClampsToStock(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(coffee, 1))
	require.NoError(t, c.SetQuantity(coffee.ID, 10))
	assert.Equal(t, 2, c.Lines()[0].Quantity)
}

func TestSetQuantityUnknownProduct(t *testing.T) {
	c := NewCart()
	assert.True(t, IsValidation(c.SetQuantity("nope", 2)))
}

func TestRemoveLineMovesLastTouchedToPrevious(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(soda, 1))
	require.NoError(t, c.AddLine(bread, 1))
	require.NoError(t, c.AddLine(coffee, 1))

	c.RemoveLine(coffee.ID)
	assert.Equal(t, bread.ID, c.LastTouched())

	require.NoError(t, c.SetQuantity(soda.ID, 4))
	c.RemoveLine(soda.ID)
	assert.Equal(t, bread.ID, c.LastTouched())

	c.RemoveLine(bread.ID)
	assert.Empty(t, c.LastTouched())
}

func TestRemoveLineKeepsOtherLastTouched(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(soda, 1))
	require.NoError(t, c.AddLine(bread, 1))
	c.RemoveLine(soda.ID)
	assert.Equal(t, bread.ID, c.LastTouched())
}

func TestAdjustLastTouched(t *testing.T) {
	c := NewCart()
	assert.True(t, IsValidation(c.AdjustLastTouched(1)))

	require.NoError(t, c.AddLine(soda, 1))
	require.NoError(t, c.AdjustLastTouched(1))
	assert.Equal(t, 2, c.Lines()[0].Quantity)

	require.NoError(t, c.AdjustLastTouched(-1))
	require.NoError(t, c.AdjustLastTouched(-1))
	assert.True(t, c.Empty())
}

func TestCartInvariantsHoldAfterMixedOperations(t *testing.T) {
	c := NewCart()
	_ = c.AddLine(soda, 2)
	_ = c.AddLine(bread, 1)
	_ = c.AddLine(soda, 1)
	_ = c.SetQuantity(bread.ID, 0)
	_ = c.AddLine(coffee, 5)
	_ = c.AddLine(coffee, 2)
	_ = c.SetQuantity(coffee.ID, -3)
	_ = c.AddLine(bread, 1)

	seen := map[string]bool{}
	for _, l := range c.Lines() {
		assert.GreaterOrEqual(t, l.Quantity, 1)
		assert.False(t, seen[l.ProductID], "duplicate line for %s", l.ProductID)
		seen[l.ProductID] = true
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine(soda, 1))
	lines := c.Lines()
	lines[0].Quantity = 99
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func variantLine(product, warehouse uuid.UUID, variant *uuid.UUID, qty decimal.Decimal) StockLine {
	return StockLine{ProductID: product, WarehouseID: warehouse, VariantID: variant, Quantity: qty}
}

func TestCheckVariantIntegrity(t *testing.T) {
	product := uuid.New()
	warehouse := uuid.New()
	red := uuid.New()
	blue := uuid.New()

	t.Run("no variants is valid", func(t *testing.T) {
		res := CheckVariantIntegrity(product, warehouse, []StockLine{
			variantLine(product, warehouse, nil, dec(12)),
		})
		assert.True(t, res.IsValid)
		assert.False(t, res.HasVariants)
		assert.True(t, res.ProductStock.Equal(dec(12)))
	})

	t.Run("all stock on variants is valid", func(t *testing.T) {
		res := CheckVariantIntegrity(product, warehouse, []StockLine{
			variantLine(product, warehouse, &red, dec(4)),
			variantLine(product, warehouse, &red, dec(1)),
			variantLine(product, warehouse, &blue, dec(6)),
			variantLine(product, warehouse, nil, decimal.Zero),
		})
		assert.True(t, res.IsValid)
		assert.True(t, res.HasVariants)
		assert.True(t, res.VariantStock.Equal(dec(11)))
		assert.True(t, res.ByVariant[red].Equal(dec(5)))
		assert.True(t, res.ByVariant[blue].Equal(dec(6)))
	})

	t.Run("product level stock next to variants is a discrepancy", func(t *testing.T) {
		res := CheckVariantIntegrity(product, warehouse, []StockLine{
			variantLine(product, warehouse, &red, dec(4)),
			variantLine(product, warehouse, nil, dec(3)),
		})
		assert.False(t, res.IsValid)
		assert.True(t, res.Discrepancy.Equal(dec(3)))
	})

	t.Run("values below tolerance count as zero", func(t *testing.T) {
		res := CheckVariantIntegrity(product, warehouse, []StockLine{
			variantLine(product, warehouse, &red, dec(4)),
			variantLine(product, warehouse, nil, decimal.New(5, -5)),
		})
		assert.True(t, res.IsValid)
	})

	t.Run("other products and warehouses are ignored", func(t *testing.T) {
		res := CheckVariantIntegrity(product, warehouse, []StockLine{
			variantLine(product, warehouse, &red, dec(4)),
			variantLine(uuid.New(), warehouse, nil, dec(9)),
			variantLine(product, uuid.New(), nil, dec(9)),
		})
		assert.True(t, res.IsValid)
		assert.True(t, res.ProductStock.IsZero())
	})
}

package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// variantTolerance is the product-level quantity still treated as zero
var variantTolerance = decimal.New(1, -4)

// VariantIntegrityResult is the outcome of a variant consistency check
type VariantIntegrityResult struct {
	ProductID    uuid.UUID
	WarehouseID  uuid.UUID
	IsValid      bool
	HasVariants  bool
	ProductStock decimal.Decimal
	VariantStock decimal.Decimal
	// Discrepancy is the product-level quantity that should live on variants
	Discrepancy decimal.Decimal
	ByVariant   map[uuid.UUID]decimal.Decimal
}

// CheckVariantIntegrity compares product-level ledger rows with variant-level
// rows of one product in one warehouse. When the product has variant rows all
// stock is expected at variant granularity, so product-level quantity must be
// (close to) zero. Lines of other products or warehouses are ignored.
func CheckVariantIntegrity(productID, warehouseID uuid.UUID, lines []StockLine) VariantIntegrityResult {
	res := VariantIntegrityResult{
		ProductID:    productID,
		WarehouseID:  warehouseID,
		ProductStock: decimal.Zero,
		VariantStock: decimal.Zero,
		Discrepancy:  decimal.Zero,
		ByVariant:    make(map[uuid.UUID]decimal.Decimal),
	}

	for idx := range lines {
		l := &lines[idx]
		if l.ProductID != productID || l.WarehouseID != warehouseID {
			continue
		}
		if l.VariantID == nil {
			res.ProductStock = res.ProductStock.Add(l.Quantity)
			continue
		}
		res.HasVariants = true
		res.VariantStock = res.VariantStock.Add(l.Quantity)
		res.ByVariant[*l.VariantID] = res.ByVariant[*l.VariantID].Add(l.Quantity)
	}

	if !res.HasVariants {
		res.IsValid = true
		return res
	}
	res.Discrepancy = res.ProductStock
	res.IsValid = res.ProductStock.Abs().LessThan(variantTolerance)
	return res
}

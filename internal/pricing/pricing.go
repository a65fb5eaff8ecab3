package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrDegenerateTax is returned when the tax percent would make the tax
// multiplier zero or negative.
var ErrDegenerateTax = errors.New("tax percent must be greater than -100")

// syncTolerance is the largest gap between adjusted and nominal values that
// still counts as an automatically priced quote.
const syncTolerance = 1.0

// ItemInput represents the item-level inputs used to compute a quote's cost.
type ItemInput struct {
	Quantity float64
	UnitCost float64
	Hidden   bool
}

// Percentages represents the markup parameters shared by every item of a quote.
type Percentages struct {
	ProfitPercent float64
	BVPercent     float64
	TaxPercent    float64
}

// Validate rejects percentages that would make the price degenerate.
func (p Percentages) Validate() error {
	for _, v := range []float64{p.ProfitPercent, p.BVPercent, p.TaxPercent} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("percentages must be finite numbers")
		}
	}
	if p.TaxPercent <= -100 {
		return ErrDegenerateTax
	}
	return nil
}

// MarginMultiplier is 1 + (profit + bv) / 100.
func (p Percentages) MarginMultiplier() float64 {
	return 1.0 + (p.ProfitPercent+p.BVPercent)/100.0
}

// TaxMultiplier is 1 + tax / 100.
func (p Percentages) TaxMultiplier() float64 {
	return 1.0 + p.TaxPercent/100.0
}

// Previous is the price state stored on a quote before it is recomputed.
type Previous struct {
	AdjustedValue float64
	SaleValue     float64
	Locked        bool
}

// Breakdown contains the intermediate values of the pricing calculation.
type Breakdown struct {
	TotalCost  float64
	IdealPrice float64
}

// Totals contains the reconciled values stored on the quote.
type Totals struct {
	SaleValue     float64
	AdjustedValue float64
	Synced        bool
}

// Result groups the full pricing output.
type Result struct {
	Breakdown Breakdown
	Totals    Totals
}

// TotalCost sums quantity × unit cost over the items that are not hidden.
func TotalCost(items []ItemInput) float64 {
	total := 0.0
	for _, item := range items {
		if item.Hidden {
			continue
		}
		total += item.UnitCost * item.Quantity
	}
	return total
}

// IdealPrice applies the margin and tax multipliers to a total cost.
func IdealPrice(totalCost float64, p Percentages) float64 {
	return (totalCost * p.MarginMultiplier()) * p.TaxMultiplier()
}

// Calculate recomputes the cost and sale price of a quote. A locked quote
// keeps its adjusted value; every other quote has both values replaced by
// the rounded ideal price.
func Calculate(items []ItemInput, p Percentages, prev Previous) Result {
	totalCost := TotalCost(items)
	ideal := IdealPrice(totalCost, p)
	rounded := Round2(ideal)

	totals := Totals{SaleValue: rounded, AdjustedValue: rounded, Synced: true}
	if prev.Locked {
		totals.AdjustedValue = prev.AdjustedValue
		totals.Synced = false
	}

	return Result{
		Breakdown: Breakdown{TotalCost: totalCost, IdealPrice: ideal},
		Totals:    totals,
	}
}

// InSync reports whether stored values look automatically priced: either
// nothing has been priced yet or the adjusted and nominal values are less
// than one currency unit apart.
func InSync(prev Previous) bool {
	isNew := prev.AdjustedValue == 0 && prev.SaleValue == 0
	return isNew || math.Abs(prev.AdjustedValue-prev.SaleValue) < syncTolerance
}

// Round2 rounds a currency amount to cents, half away from zero.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Derived holds presentation values computed from a priced quote.
type Derived struct {
	NetBeforeTax float64
	RealProfit   float64
	Commission   float64
	Tax          float64
}

// Derive back-solves the profit realised by the adjusted value, along with
// the commission and tax amounts implied by the percentages.
func Derive(totalCost, adjustedValue float64, p Percentages) Derived {
	netBeforeTax := adjustedValue / p.TaxMultiplier()
	commission := totalCost * (p.BVPercent / 100.0)

	return Derived{
		NetBeforeTax: netBeforeTax,
		RealProfit:   netBeforeTax - totalCost - commission,
		Commission:   commission,
		Tax:          (totalCost * p.MarginMultiplier()) * (p.TaxPercent / 100.0),
	}
}

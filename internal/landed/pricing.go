package landed

// UnitCosts is a line's landed total broken down to box, bunch and stem
// level.
type UnitCosts struct {
	LandedLine   float64
	CostPerBox   float64
	CostPerBunch float64
	CostPerStem  float64
}

// UnitCostsFor combines a line's own invoice value with its allocated
// shares and derives per-unit costs. Zero box counts (and zero packing
// counts on empty lines) fall through safeDiv to zero costs.
func UnitCostsFor(ln ExpandedLine, alloc Allocation) UnitCosts {
	landedLine := ln.InvoiceLine + alloc.Freight + alloc.Duty + alloc.Trucking
	costPerBox := safeDiv(landedLine, float64(ln.Boxes))

	return UnitCosts{
		LandedLine:   landedLine,
		CostPerBox:   costPerBox,
		CostPerBunch: safeDiv(costPerBox, float64(ln.BunchPerBox)),
		CostPerStem:  safeDiv(costPerBox, float64(ln.StemsPerBox)),
	}
}

// SellQuote is the suggested sell price at one target margin.
type SellQuote struct {
	Margin   float64 `json:"margin"`
	PerBox   float64 `json:"per_box"`
	PerBunch float64 `json:"per_bunch"`
}

// SellQuotes prices an already-derived cost at every target margin. Margin
// is a fraction of the sell price, so price = cost / (1 - m). Margins are
// validated to be below 1 before the pipeline runs; this never sees a
// divisor of zero or less.
func SellQuotes(costs UnitCosts, bunchPerBox int, margins []float64) []SellQuote {
	quotes := make([]SellQuote, 0, len(margins))
	for _, m := range margins {
		perBox := safeDiv(costs.CostPerBox, 1.0-m)
		quotes = append(quotes, SellQuote{
			Margin:   m,
			PerBox:   perBox,
			PerBunch: safeDiv(perBox, float64(bunchPerBox)),
		})
	}
	return quotes
}

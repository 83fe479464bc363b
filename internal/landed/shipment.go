// Package landed computes the fully-loaded cost of imported flower
// shipments. Shared shipment costs (air freight, customs duty, ground
// trucking) are distributed across commercial lines in proportion to a
// cost-appropriate basis, then folded into per-box, per-bunch and
// per-stem costs and margin-based sell prices.
//
// The whole computation is a single synchronous pass over value types:
// expand lines, aggregate bases, allocate pools, derive unit costs, price,
// summarize. It holds no state between calls and is safe to run from any
// number of goroutines.
package landed

import "fmt"

// Shipment is one calculation request: the shared-cost header plus the
// ordered commercial lines.
type Shipment struct {
	AWB           string  `json:"awb"`
	RatePerKg     float64 `json:"rate_per_kg"`
	DutyRate      float64 `json:"duty_rate"`
	TruckingTotal float64 `json:"trucking_total"`

	KgDefaults map[BoxType]float64 `json:"kg_defaults"`
	BoxWeights map[BoxType]float64 `json:"box_weights"`

	// Margins are the target sell margins, as fractions of the sell
	// price. At least one is required; two or more are priced in the
	// same pass.
	Margins []float64 `json:"margins"`

	// Optional shipment-level sales projection inputs. TargetProfit is a
	// fraction of the final sales total, not a markup on cost.
	ExtraExpenses float64 `json:"extra_expenses"`
	TargetProfit  float64 `json:"target_profit"`

	Lines []Line `json:"lines"`
}

// Validate checks the configuration preconditions. Violations here are
// caller errors and must be rejected before the pipeline runs; every
// input that passes has a defined numeric result.
func (s Shipment) Validate() error {
	if s.RatePerKg < 0 {
		return fmt.Errorf("rate_per_kg must be non-negative, got %v", s.RatePerKg)
	}
	if s.DutyRate < 0 || s.DutyRate > 1 {
		return fmt.Errorf("duty_rate must be in [0, 1], got %v", s.DutyRate)
	}
	if s.TruckingTotal < 0 {
		return fmt.Errorf("trucking_total must be non-negative, got %v", s.TruckingTotal)
	}
	if s.ExtraExpenses < 0 {
		return fmt.Errorf("extra_expenses must be non-negative, got %v", s.ExtraExpenses)
	}
	if s.TargetProfit < 0 || s.TargetProfit >= 1 {
		return fmt.Errorf("target_profit must be in [0, 1), got %v", s.TargetProfit)
	}

	if len(s.Margins) == 0 {
		return fmt.Errorf("at least one target margin is required")
	}
	for _, m := range s.Margins {
		if m < 0 || m >= 1 {
			return fmt.Errorf("margin must be in [0, 1), got %v", m)
		}
	}

	for bt, kg := range s.KgDefaults {
		if kg < 0 {
			return fmt.Errorf("kg default for %s must be non-negative, got %v", bt, kg)
		}
	}
	for bt, w := range s.BoxWeights {
		if w < 0 {
			return fmt.Errorf("box weight for %s must be non-negative, got %v", bt, w)
		}
	}

	for i, ln := range s.Lines {
		if ln.Boxes < 0 {
			return fmt.Errorf("line %d: boxes must be non-negative, got %d", i, ln.Boxes)
		}
		if ln.BunchPerBox <= 0 {
			return fmt.Errorf("line %d: bunch_per_box must be positive, got %d", i, ln.BunchPerBox)
		}
		if ln.StemsPerBunch <= 0 {
			return fmt.Errorf("line %d: stems_per_bunch must be positive, got %d", i, ln.StemsPerBunch)
		}
		if ln.KgPerBox < 0 {
			return fmt.Errorf("line %d: kg_per_box must be non-negative, got %v", i, ln.KgPerBox)
		}
		if ln.PricePerBunch < 0 {
			return fmt.Errorf("line %d: price_per_bunch must be non-negative, got %v", i, ln.PricePerBunch)
		}
	}

	return nil
}

// LineResult is the computed record for one input line.
type LineResult struct {
	Finca   string  `json:"finca"`
	Origin  string  `json:"origin"`
	Product string  `json:"product"`
	BoxType BoxType `json:"box_type"`
	Boxes   int     `json:"boxes"`

	BunchPerBox   int `json:"bunch_per_box"`
	StemsPerBunch int `json:"stems_per_bunch"`
	StemsPerBox   int `json:"stems_per_box"`

	KgPerBox      float64 `json:"kg_per_box"`
	KgLine        float64 `json:"kg_line"`
	PricePerBunch float64 `json:"price_per_bunch"`
	InvoicePerBox float64 `json:"invoice_per_box"`
	InvoiceLine   float64 `json:"invoice_line"`
	WeightedBoxes float64 `json:"weighted_boxes"`

	FreightAlloc  float64 `json:"freight_alloc"`
	DutyAlloc     float64 `json:"duty_alloc"`
	TruckingAlloc float64 `json:"trucking_alloc"`

	LandedLine   float64 `json:"landed_line"`
	CostPerBox   float64 `json:"cost_per_box"`
	CostPerBunch float64 `json:"cost_per_bunch"`
	CostPerStem  float64 `json:"cost_per_stem"`

	Sell []SellQuote `json:"sell"`
}

// Totals are the shipment-level sums across all lines.
type Totals struct {
	TotalBoxes         int     `json:"total_boxes"`
	TotalKilos         float64 `json:"total_kilos"`
	TotalInvoice       float64 `json:"total_invoice"`
	TotalWeightedBoxes float64 `json:"total_weighted_boxes"`
	FreightTotal       float64 `json:"freight_total"`
	DutyTotal          float64 `json:"duty_total"`
	TruckingTotal      float64 `json:"trucking_total"`
	GrandLandedTotal   float64 `json:"grand_landed_total"`
}

// Projection is the optional shipment-level sales target: how much the
// whole shipment must sell for so that profit is the requested fraction
// of the sales total.
type Projection struct {
	ExtraExpenses   float64 `json:"extra_expenses"`
	TargetProfit    float64 `json:"target_profit"`
	TotalInvestment float64 `json:"total_investment"`
	RequiredSales   float64 `json:"required_sales"`
	ExpectedProfit  float64 `json:"expected_profit"`
}

// Result is the full calculation output: echoed header values, totals,
// the optional projection, and one LineResult per input line in input
// order.
type Result struct {
	AWB        string      `json:"awb"`
	RatePerKg  float64     `json:"rate_per_kg"`
	DutyRate   float64     `json:"duty_rate"`
	Margins    []float64   `json:"margins"`
	Totals     Totals      `json:"totals"`
	Projection *Projection `json:"projection,omitempty"`

	Lines []LineResult `json:"lines"`
}

// Calculate runs the full costing pipeline over a shipment. It validates
// the header first and never mutates its input; identical input yields
// identical output.
func Calculate(s Shipment) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}

	expanded := make([]ExpandedLine, 0, len(s.Lines))
	for _, ln := range s.Lines {
		expanded = append(expanded, ExpandLine(ln, s.KgDefaults, s.BoxWeights))
	}

	bases := AggregateBases(expanded)
	pools := PoolsFor(bases, s.RatePerKg, s.DutyRate, s.TruckingTotal)

	lines := make([]LineResult, 0, len(expanded))
	for _, ln := range expanded {
		alloc := Allocate(ln, bases, pools)
		costs := UnitCostsFor(ln, alloc)

		lines = append(lines, LineResult{
			Finca:   ln.Finca,
			Origin:  ln.Origin,
			Product: ln.Product,
			BoxType: ln.ResolvedBoxType,
			Boxes:   ln.Boxes,

			BunchPerBox:   ln.BunchPerBox,
			StemsPerBunch: ln.StemsPerBunch,
			StemsPerBox:   ln.StemsPerBox,

			KgPerBox:      ln.EffectiveKgPerBox,
			KgLine:        ln.KgLine,
			PricePerBunch: ln.PricePerBunch,
			InvoicePerBox: ln.InvoicePerBox,
			InvoiceLine:   ln.InvoiceLine,
			WeightedBoxes: ln.WeightedBoxes,

			FreightAlloc:  alloc.Freight,
			DutyAlloc:     alloc.Duty,
			TruckingAlloc: alloc.Trucking,

			LandedLine:   costs.LandedLine,
			CostPerBox:   costs.CostPerBox,
			CostPerBunch: costs.CostPerBunch,
			CostPerStem:  costs.CostPerStem,

			Sell: SellQuotes(costs, ln.BunchPerBox, s.Margins),
		})
	}

	res := Result{
		AWB:       s.AWB,
		RatePerKg: s.RatePerKg,
		DutyRate:  s.DutyRate,
		Margins:   append([]float64(nil), s.Margins...),
		Totals: Totals{
			TotalBoxes:         bases.TotalBoxes,
			TotalKilos:         bases.TotalKilos,
			TotalInvoice:       bases.TotalInvoice,
			TotalWeightedBoxes: bases.TotalWeightedBoxes,
			FreightTotal:       pools.Freight,
			DutyTotal:          pools.Duty,
			TruckingTotal:      pools.Trucking,
			GrandLandedTotal:   bases.TotalInvoice + pools.Freight + pools.Duty + pools.Trucking,
		},
		Lines: lines,
	}

	if s.TargetProfit > 0 || s.ExtraExpenses > 0 {
		p := projectionFor(res.Totals.GrandLandedTotal, s.ExtraExpenses, s.TargetProfit)
		res.Projection = &p
	}

	return res, nil
}

// projectionFor mirrors the per-line margin math at the shipment level:
// requiredSales × (1 - targetProfit) = investment.
func projectionFor(grandLanded, extraExpenses, targetProfit float64) Projection {
	investment := grandLanded + extraExpenses
	requiredSales := safeDiv(investment, 1.0-targetProfit)

	return Projection{
		ExtraExpenses:   extraExpenses,
		TargetProfit:    targetProfit,
		TotalInvestment: investment,
		RequiredSales:   requiredSales,
		ExpectedProfit:  requiredSales - investment,
	}
}

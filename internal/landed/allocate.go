package landed

// Bases holds the shipment-wide allocation denominators: the totals each
// shared cost pool is proportioned against.
type Bases struct {
	TotalBoxes         int
	TotalKilos         float64
	TotalInvoice       float64
	TotalWeightedBoxes float64
}

// AggregateBases sums the per-line quantities in input order. Summation
// order is part of the contract: results must be reproducible for
// identical input.
func AggregateBases(lines []ExpandedLine) Bases {
	var b Bases
	for _, ln := range lines {
		b.TotalBoxes += ln.Boxes
		b.TotalKilos += ln.KgLine
		b.TotalInvoice += ln.InvoiceLine
		b.TotalWeightedBoxes += ln.WeightedBoxes
	}
	return b
}

// Pools are the three shipment-level shared cost totals to distribute
// across lines.
type Pools struct {
	Freight  float64
	Duty     float64
	Trucking float64
}

// PoolsFor derives the freight and duty pools from the aggregated bases
// and the header rates. The trucking pool is given directly.
func PoolsFor(b Bases, ratePerKg, dutyRate, truckingTotal float64) Pools {
	return Pools{
		Freight:  b.TotalKilos * ratePerKg,
		Duty:     b.TotalInvoice * dutyRate,
		Trucking: truckingTotal,
	}
}

// Allocation is one line's proportional share of each shared pool.
type Allocation struct {
	Freight  float64
	Duty     float64
	Trucking float64
}

// Allocate distributes each pool to a line in proportion to the line's
// share of the matching basis: kilos for freight, invoice value for duty,
// weighted boxes for trucking. A basis total of zero zeroes that pool's
// share for every line; the three pools are independent, so a line can
// carry a freight share and no duty share at the same time.
func Allocate(ln ExpandedLine, b Bases, p Pools) Allocation {
	return Allocation{
		Freight:  safeDiv(ln.KgLine, b.TotalKilos) * p.Freight,
		Duty:     safeDiv(ln.InvoiceLine, b.TotalInvoice) * p.Duty,
		Trucking: safeDiv(ln.WeightedBoxes, b.TotalWeightedBoxes) * p.Trucking,
	}
}

// safeDiv returns a/b, or 0 when b is zero. An empty or all-zero shipment
// is a valid input, so degenerate denominators yield zero shares instead
// of NaN or Inf.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

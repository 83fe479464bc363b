package landed

// Line is one commercial row of a shipment as entered by the buyer.
//
// KgPerBox of zero means "use the shipment's default weight for this box
// type"; the sentinel is resolved exactly once, in ExpandLine, and nothing
// downstream looks at it again. Per-box invoice value is always derived
// from PricePerBunch, never entered directly.
type Line struct {
	Finca   string `json:"finca"`
	Origin  string `json:"origin"`
	Product string `json:"product"`

	BoxType       string  `json:"box_type"`
	Boxes         int     `json:"boxes"`
	BunchPerBox   int     `json:"bunch_per_box"`
	StemsPerBunch int     `json:"stems_per_bunch"`
	KgPerBox      float64 `json:"kg_per_box"`
	PricePerBunch float64 `json:"price_per_bunch"`
}

// ExpandedLine is a line with its absolute quantities resolved: effective
// weight, invoice value and weighted-box contribution. These are the
// line's contributions to the three allocation bases.
type ExpandedLine struct {
	Line

	ResolvedBoxType   BoxType
	EffectiveKgPerBox float64
	KgLine            float64
	InvoicePerBox     float64
	InvoiceLine       float64
	WeightedBoxes     float64
	StemsPerBox       int
}

// ExpandLine resolves a line's box type and computes its absolute
// quantities from the shipment-wide defaults. Pure function; the input
// line is never modified.
//
// A box type missing from kgDefaults resolves to an effective weight of 0,
// so the line simply contributes nothing to the weight basis. A box type
// missing from boxWeights counts with factor 1.0.
func ExpandLine(ln Line, kgDefaults, boxWeights map[BoxType]float64) ExpandedLine {
	bt := NormalizeBoxType(ln.BoxType)

	kgBox := ln.KgPerBox
	if kgBox <= 0 {
		kgBox = lookup(kgDefaults, bt, 0)
	}

	boxes := float64(ln.Boxes)
	invoiceBox := ln.PricePerBunch * float64(ln.BunchPerBox)

	return ExpandedLine{
		Line:              ln,
		ResolvedBoxType:   bt,
		EffectiveKgPerBox: kgBox,
		KgLine:            kgBox * boxes,
		InvoicePerBox:     invoiceBox,
		InvoiceLine:       invoiceBox * boxes,
		WeightedBoxes:     boxes * lookup(boxWeights, bt, 1.0),
		StemsPerBox:       ln.BunchPerBox * ln.StemsPerBunch,
	}
}

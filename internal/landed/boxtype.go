package landed

import "strings"

// BoxType is one of the closed set of box sizes used in flower shipments.
type BoxType string

const (
	FullBox    BoxType = "FB"
	HalfBox    BoxType = "HB"
	QuarterBox BoxType = "QB"
)

// DefaultBoxType is the category unrecognized labels resolve to.
const DefaultBoxType = HalfBox

// NormalizeBoxType maps a free-text label to a member of the closed set.
// Labels are trimmed and uppercased before matching; anything that still
// does not match (including the empty string) resolves to DefaultBoxType.
// Free-text input is expected to be imperfect, so this never fails.
func NormalizeBoxType(label string) BoxType {
	switch bt := BoxType(strings.ToUpper(strings.TrimSpace(label))); bt {
	case FullBox, HalfBox, QuarterBox:
		return bt
	}
	return DefaultBoxType
}

// lookup reads a category-keyed map, returning fallback when the category
// is absent. All reads of kg-default and weight-factor maps go through
// here so missing entries behave identically everywhere.
func lookup(m map[BoxType]float64, bt BoxType, fallback float64) float64 {
	if v, ok := m[bt]; ok {
		return v
	}
	return fallback
}

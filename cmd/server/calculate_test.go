package main

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/petalroute/landedcost/internal/landed"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

const calculatePayload = `{
	"awb": "145-00112233",
	"rate_per_kg": 2.0,
	"duty_rate": 0.20,
	"trucking_total": 100,
	"lines": [
		{"finca": "Altaflor", "box_type": "HB", "boxes": 10, "bunch_per_box": 10, "stems_per_bunch": 25, "kg_per_box": 15, "price_per_bunch": 2.0},
		{"finca": "Monteverde", "box_type": "FB", "boxes": 10, "bunch_per_box": 10, "stems_per_bunch": 25, "kg_per_box": 30, "price_per_bunch": 4.0}
	]
}`

func TestHandleAPICalculate(t *testing.T) {
	srv := &server{db: newTestDB(t)}

	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(calculatePayload))
	rec := httptest.NewRecorder()
	srv.handleAPICalculate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res landed.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	nearlyEqual(t, "GrandLandedTotal", res.Totals.GrandLandedTotal, 1720)
	nearlyEqual(t, "FreightTotal", res.Totals.FreightTotal, 900)
	nearlyEqual(t, "DutyTotal", res.Totals.DutyTotal, 120)

	// No margins in the payload: the stored defaults (0.35 / 0.40) apply.
	if len(res.Margins) != 2 {
		t.Fatalf("expected 2 default margins, got %v", res.Margins)
	}
	nearlyEqual(t, "default margin a", res.Margins[0], 0.35)
	nearlyEqual(t, "default margin b", res.Margins[1], 0.40)
}

func TestHandleAPICalculateRejectsBadConfig(t *testing.T) {
	srv := &server{db: newTestDB(t)}

	payload := `{"rate_per_kg": -1, "lines": []}`
	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.handleAPICalculate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestToShipmentAppliesStoredDefaults(t *testing.T) {
	defs := calculationDefaults{
		DutyRate:   0.22,
		MarginA:    0.35,
		MarginB:    0.40,
		KgDefaults: map[landed.BoxType]float64{landed.HalfBox: 15},
		BoxWeights: map[landed.BoxType]float64{landed.HalfBox: 0.5},
	}

	req := shipmentRequest{
		RatePerKg: 2.0,
		Lines:     []lineRequest{{BoxType: "HB", Boxes: 5, PricePerBunch: 2}},
	}

	ship := req.toShipment(defs)

	nearlyEqual(t, "DutyRate", ship.DutyRate, 0.22)
	if len(ship.Margins) != 2 || ship.Margins[0] != 0.35 || ship.Margins[1] != 0.40 {
		t.Fatalf("unexpected margins: %v", ship.Margins)
	}
	nearlyEqual(t, "kg default", ship.KgDefaults[landed.HalfBox], 15)
	nearlyEqual(t, "box weight", ship.BoxWeights[landed.HalfBox], 0.5)

	ln := ship.Lines[0]
	if ln.BunchPerBox != defaultBunchPerBox || ln.StemsPerBunch != defaultStemsPerBunch {
		t.Fatalf("packing defaults not applied: %+v", ln)
	}
}

func TestToShipmentAcceptsLegacyAliases(t *testing.T) {
	duty := 0.10
	marginA := 0.30
	marginB := 0.45

	req := shipmentRequest{
		DutyRate:       &duty,
		MiamiToNYTotal: 250,
		MarginA:        &marginA,
		MarginB:        &marginB,
		Lines: []lineRequest{
			{BoxType: "QB", Boxes: 4, BunchPerBox: 10, StemsPerBunch: 20, InvoicePerBox: 30},
		},
	}

	ship := req.toShipment(calculationDefaults{DutyRate: 0.22, MarginA: 0.35, MarginB: 0.40})

	nearlyEqual(t, "TruckingTotal", ship.TruckingTotal, 250)
	nearlyEqual(t, "DutyRate", ship.DutyRate, 0.10)
	if len(ship.Margins) != 2 || ship.Margins[0] != 0.30 || ship.Margins[1] != 0.45 {
		t.Fatalf("legacy margins not applied: %v", ship.Margins)
	}

	// invoice_per_box converts to price_per_bunch against bunch_per_box.
	nearlyEqual(t, "PricePerBunch", ship.Lines[0].PricePerBunch, 3.0)
}

func TestToShipmentNormalizesCategoryMapKeys(t *testing.T) {
	req := shipmentRequest{
		Margins:    []float64{0.35},
		KgDefaults: map[string]float64{" hb ": 16, "FB": 31},
		BoxWeights: map[string]float64{"qb": 0.3},
		Lines:      []lineRequest{{BoxType: "HB", Boxes: 1, BunchPerBox: 10, StemsPerBunch: 20, PricePerBunch: 1}},
	}

	ship := req.toShipment(calculationDefaults{})

	nearlyEqual(t, "normalized HB kg default", ship.KgDefaults[landed.HalfBox], 16)
	nearlyEqual(t, "normalized FB kg default", ship.KgDefaults[landed.FullBox], 31)
	nearlyEqual(t, "normalized QB weight", ship.BoxWeights[landed.QuarterBox], 0.3)
}

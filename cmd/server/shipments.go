package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petalroute/landedcost/internal/export"
	"github.com/petalroute/landedcost/internal/landed"
)

// Packing defaults applied when the form leaves the fields empty.
const (
	defaultBunchPerBox   = 12
	defaultStemsPerBunch = 25
)

// shipmentRequest is the wire shape of a calculation request. It accepts
// the legacy payload keys older clients still send (miami_to_ny_total,
// margin_a/margin_b, invoice_per_box) and converts everything into the
// canonical landed.Shipment before the engine runs.
type shipmentRequest struct {
	AWB            string   `json:"awb"`
	Title          string   `json:"title"`
	Notes          string   `json:"notes"`
	RatePerKg      float64  `json:"rate_per_kg"`
	DutyRate       *float64 `json:"duty_rate"`
	TruckingTotal  float64  `json:"trucking_total"`
	MiamiToNYTotal float64  `json:"miami_to_ny_total"`

	KgDefaults map[string]float64 `json:"kg_defaults"`
	BoxWeights map[string]float64 `json:"box_weights"`

	Margins []float64 `json:"margins"`
	MarginA *float64  `json:"margin_a"`
	MarginB *float64  `json:"margin_b"`

	ExtraExpenses float64 `json:"extra_expenses"`
	TargetProfit  float64 `json:"target_profit"`

	Lines []lineRequest `json:"lines"`
}

type lineRequest struct {
	Finca   string `json:"finca"`
	Origin  string `json:"origin"`
	Product string `json:"product"`

	BoxType       string  `json:"box_type"`
	Boxes         int     `json:"boxes"`
	BunchPerBox   int     `json:"bunch_per_box"`
	StemsPerBunch int     `json:"stems_per_bunch"`
	KgPerBox      float64 `json:"kg_per_box"`
	PricePerBunch float64 `json:"price_per_bunch"`

	// Legacy: older payloads carried the per-box invoice value directly.
	// It is back-converted to a bunch price; price_per_bunch wins when
	// both are present.
	InvoicePerBox float64 `json:"invoice_per_box"`
}

func (lr lineRequest) toLine() landed.Line {
	ln := landed.Line{
		Finca:         lr.Finca,
		Origin:        lr.Origin,
		Product:       lr.Product,
		BoxType:       lr.BoxType,
		Boxes:         lr.Boxes,
		BunchPerBox:   lr.BunchPerBox,
		StemsPerBunch: lr.StemsPerBunch,
		KgPerBox:      lr.KgPerBox,
		PricePerBunch: lr.PricePerBunch,
	}

	if ln.BunchPerBox <= 0 {
		ln.BunchPerBox = defaultBunchPerBox
	}
	if ln.StemsPerBunch <= 0 {
		ln.StemsPerBunch = defaultStemsPerBunch
	}
	if ln.PricePerBunch == 0 && lr.InvoicePerBox > 0 {
		ln.PricePerBunch = lr.InvoicePerBox / float64(ln.BunchPerBox)
	}

	return ln
}

// calculationDefaults are the stored values used when a request omits a
// header field: the rate_config singleton plus the active box presets.
type calculationDefaults struct {
	DutyRate   float64
	MarginA    float64
	MarginB    float64
	KgDefaults map[landed.BoxType]float64
	BoxWeights map[landed.BoxType]float64
}

func (s *server) loadCalculationDefaults() (calculationDefaults, error) {
	rc, err := s.getRateConfig()
	if err != nil {
		return calculationDefaults{}, err
	}

	defs := calculationDefaults{
		DutyRate:   rc.DutyRate,
		MarginA:    rc.MarginA,
		MarginB:    rc.MarginB,
		KgDefaults: make(map[landed.BoxType]float64),
		BoxWeights: make(map[landed.BoxType]float64),
	}

	presets, err := s.listBoxPresets()
	if err != nil {
		return calculationDefaults{}, err
	}
	for _, p := range presets {
		if !p.Active {
			continue
		}
		bt := landed.NormalizeBoxType(p.BoxType)
		defs.KgDefaults[bt] = p.KgDefault
		defs.BoxWeights[bt] = p.WeightFactor
	}

	return defs, nil
}

func (req shipmentRequest) toShipment(defs calculationDefaults) landed.Shipment {
	ship := landed.Shipment{
		AWB:           req.AWB,
		RatePerKg:     req.RatePerKg,
		TruckingTotal: req.TruckingTotal,
		ExtraExpenses: req.ExtraExpenses,
		TargetProfit:  req.TargetProfit,
	}

	if ship.TruckingTotal == 0 && req.MiamiToNYTotal > 0 {
		ship.TruckingTotal = req.MiamiToNYTotal
	}

	if req.DutyRate != nil {
		ship.DutyRate = *req.DutyRate
	} else {
		ship.DutyRate = defs.DutyRate
	}

	ship.Margins = req.Margins
	if len(ship.Margins) == 0 {
		a, b := defs.MarginA, defs.MarginB
		if req.MarginA != nil {
			a = *req.MarginA
		}
		if req.MarginB != nil {
			b = *req.MarginB
		}
		ship.Margins = []float64{a, b}
	}

	ship.KgDefaults = categoryMap(req.KgDefaults, defs.KgDefaults)
	ship.BoxWeights = categoryMap(req.BoxWeights, defs.BoxWeights)

	ship.Lines = make([]landed.Line, 0, len(req.Lines))
	for _, lr := range req.Lines {
		ship.Lines = append(ship.Lines, lr.toLine())
	}

	return ship
}

// categoryMap normalizes request map keys into box types, falling back to
// the stored defaults when the request carries no map at all.
func categoryMap(src map[string]float64, fallback map[landed.BoxType]float64) map[landed.BoxType]float64 {
	if len(src) == 0 {
		return fallback
	}
	m := make(map[landed.BoxType]float64, len(src))
	for label, v := range src {
		m[landed.NormalizeBoxType(label)] = v
	}
	return m
}

func (s *server) decodeAndCalculate(w http.ResponseWriter, r *http.Request) (shipmentRequest, landed.Shipment, landed.Result, bool) {
	var req shipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return shipmentRequest{}, landed.Shipment{}, landed.Result{}, false
	}

	defs, err := s.loadCalculationDefaults()
	if err != nil {
		http.Error(w, "failed to load calculation defaults", http.StatusInternalServerError)
		return shipmentRequest{}, landed.Shipment{}, landed.Result{}, false
	}

	ship := req.toShipment(defs)
	res, err := landed.Calculate(ship)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return shipmentRequest{}, landed.Shipment{}, landed.Result{}, false
	}

	return req, ship, res, true
}

func (s *server) handleAPICalculate(w http.ResponseWriter, r *http.Request) {
	_, _, res, ok := s.decodeAndCalculate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleAPIExportCSV(w http.ResponseWriter, r *http.Request) {
	_, _, res, ok := s.decodeAndCalculate(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="landed_cost.csv"`)
	if err := export.WriteCSV(w, res); err != nil {
		http.Error(w, "failed to render csv", http.StatusInternalServerError)
	}
}

func (s *server) handleAPIShipmentSave(w http.ResponseWriter, r *http.Request) {
	req, ship, res, ok := s.decodeAndCalculate(w, r)
	if !ok {
		return
	}

	publicID, err := s.saveShipment(req, ship, res)
	if err != nil {
		http.Error(w, "failed to save shipment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"public_id": publicID,
		"totals":    res.Totals,
	})
}

func (s *server) handleAPIShipmentGet(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicID")

	stored, err := s.getShipment(publicID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing sensible left to send.
		return
	}
}

type storedShipment struct {
	PublicID  string          `json:"public_id"`
	AWB       string          `json:"awb"`
	Title     string          `json:"title"`
	Notes     string          `json:"notes"`
	CreatedAt string          `json:"created_at"`
	Shipment  json.RawMessage `json:"shipment"`
	Totals    json.RawMessage `json:"totals"`
}

func (s *server) saveShipment(req shipmentRequest, ship landed.Shipment, res landed.Result) (string, error) {
	payload, err := json.Marshal(ship)
	if err != nil {
		return "", fmt.Errorf("marshal shipment payload: %w", err)
	}
	totals, err := json.Marshal(res.Totals)
	if err != nil {
		return "", fmt.Errorf("marshal shipment totals: %w", err)
	}

	publicID := uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO shipments (public_id, awb, title, notes, payload_json, totals_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, publicID, ship.AWB, req.Title, req.Notes, string(payload), string(totals))
	if err != nil {
		return "", fmt.Errorf("insert shipment: %w", err)
	}

	return publicID, nil
}

func (s *server) getShipment(publicID string) (storedShipment, error) {
	var stored storedShipment
	var payload, totals string
	err := s.db.QueryRow(`
		SELECT public_id, COALESCE(awb, ''), COALESCE(title, ''), COALESCE(notes, ''), created_at, payload_json, totals_json
		FROM shipments
		WHERE public_id = ?
	`, publicID).Scan(&stored.PublicID, &stored.AWB, &stored.Title, &stored.Notes, &stored.CreatedAt, &payload, &totals)
	if err != nil {
		return storedShipment{}, fmt.Errorf("query shipment %s: %w", publicID, err)
	}

	stored.Shipment = json.RawMessage(payload)
	stored.Totals = json.RawMessage(totals)
	return stored, nil
}

type shipmentListItem struct {
	PublicID   string
	CreatedAt  string
	Title      string
	AWB        string
	GrandTotal float64
}

func (s *server) listShipments(query string) ([]shipmentListItem, error) {
	search := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT
			public_id,
			created_at,
			COALESCE(title, ''),
			COALESCE(awb, ''),
			totals_json
		FROM shipments
		WHERE (? = '' OR COALESCE(title, '') LIKE ? OR COALESCE(notes, '') LIKE ? OR COALESCE(awb, '') LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search, search)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	shipments := make([]shipmentListItem, 0)
	for rows.Next() {
		var item shipmentListItem
		var totalsJSON string
		if err := rows.Scan(&item.PublicID, &item.CreatedAt, &item.Title, &item.AWB, &totalsJSON); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		item.GrandTotal = extractGrandTotal(totalsJSON)
		shipments = append(shipments, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipments: %w", err)
	}

	return shipments, nil
}

func extractGrandTotal(totalsJSON string) float64 {
	var values map[string]float64
	if err := json.Unmarshal([]byte(totalsJSON), &values); err != nil {
		return 0
	}

	for _, key := range []string{"grand_landed_total", "grand_total", "total"} {
		if total, ok := values[key]; ok {
			return total
		}
	}

	return 0
}

package main

import (
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/petalroute/landedcost/internal/config"
	"github.com/petalroute/landedcost/internal/db"
	"github.com/petalroute/landedcost/internal/migrations"
	"github.com/petalroute/landedcost/internal/seed"
)

type server struct {
	auth *authService
	db   *sql.DB
}

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
}

type loginViewData struct {
	baseViewData
}

type rateConfig struct {
	RatePerKg     float64
	DutyRate      float64
	TruckingTotal float64
	MarginA       float64
	MarginB       float64
	Currency      string
}

type ratesViewData struct {
	baseViewData
	RateConfig rateConfig
}

type boxPreset struct {
	ID           int64
	BoxType      string
	KgDefault    float64
	WeightFactor float64
	Notes        string
	Active       bool
}

type boxesViewData struct {
	baseViewData
	BoxPresets []boxPreset
}

type shipmentsViewData struct {
	baseViewData
	Query     string
	Shipments []shipmentListItem
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, "migrations"); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatalf("failed to run startup seed: %v", err)
	}
	if stats.Inserts > 0 {
		log.Printf("seed inserted %d rows", stats.Inserts)
	}

	auth := newAuthService(database, cfg.SessionSecret)
	srv := &server{auth: auth, db: database}

	r := chi.NewRouter()
	r.Use(srv.authMiddleware)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	r.Get("/", srv.handleHome)
	r.Get("/login", srv.handleLoginForm)
	r.Post("/login", srv.handleLoginSubmit)
	r.Post("/logout", srv.handleLogout)

	r.Post("/api/calculate", srv.handleAPICalculate)
	r.Post("/api/export.csv", srv.handleAPIExportCSV)
	r.Post("/api/shipments", srv.handleAPIShipmentSave)
	r.Get("/api/shipments/{publicID}", srv.handleAPIShipmentGet)

	r.Get("/shipments", srv.handleShipmentsList)
	r.Get("/admin/rates", srv.handleAdminRatesForm)
	r.Post("/admin/rates", srv.handleAdminRatesSubmit)
	r.Get("/admin/boxes", srv.handleAdminBoxesForm)
	r.Post("/admin/boxes", srv.handleAdminBoxesCreate)
	r.Post("/admin/boxes/{id}", srv.handleAdminBoxesUpdate)

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, "home.html", baseViewData{})
}

func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if isAuthenticated(r, s.auth) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login.html", loginViewData{})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	valid, err := s.auth.validateCredentials(email, password)
	if err != nil {
		http.Error(w, "authentication error", http.StatusInternalServerError)
		return
	}
	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "login.html", loginViewData{baseViewData: baseViewData{ErrorMessage: "Credenciales inválidas. Intenta de nuevo."}})
		return
	}

	s.auth.setSessionCookie(w, email)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *server) handleShipmentsList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	shipments, err := s.listShipments(query)
	if err != nil {
		http.Error(w, "failed to load shipments", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "shipments.html", shipmentsViewData{
		Query:     query,
		Shipments: shipments,
	})
}

func (s *server) handleAdminRatesForm(w http.ResponseWriter, r *http.Request) {
	rates, err := s.getRateConfig()
	if err != nil {
		http.Error(w, "failed to load rate config", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_rates.html", ratesViewData{RateConfig: rates})
}

func (s *server) handleAdminRatesSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	rates, validationErr := parseRateConfigForm(r)
	if validationErr != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderTemplate(w, "admin_rates.html", ratesViewData{
			baseViewData: baseViewData{ErrorMessage: validationErr.Error()},
			RateConfig:   rates,
		})
		return
	}

	if err := s.updateRateConfig(rates); err != nil {
		http.Error(w, "failed to save rate config", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_rates.html", ratesViewData{
		baseViewData: baseViewData{SuccessMessage: "Configuración guardada correctamente."},
		RateConfig:   rates,
	})
}

func (s *server) handleAdminBoxesForm(w http.ResponseWriter, r *http.Request) {
	presets, err := s.listBoxPresets()
	if err != nil {
		http.Error(w, "failed to load box presets", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_boxes.html", boxesViewData{
		baseViewData: baseViewData{
			ErrorMessage:   r.URL.Query().Get("error"),
			SuccessMessage: r.URL.Query().Get("success"),
		},
		BoxPresets: presets,
	})
}

func (s *server) handleAdminBoxesCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	preset, err := parseBoxPresetForm(r)
	if err != nil {
		http.Redirect(w, r, "/admin/boxes?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	_, err = s.db.Exec(`
		INSERT INTO box_presets (box_type, kg_default, weight_factor, notes, active)
		VALUES (?, ?, ?, ?, ?)
	`, preset.BoxType, preset.KgDefault, preset.WeightFactor, preset.Notes, preset.Active)
	if err != nil {
		http.Error(w, "failed to create box preset", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/boxes?success=Tipo+de+caja+creado+correctamente", http.StatusSeeOther)
}

func (s *server) handleAdminBoxesUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid box preset id", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	preset, err := parseBoxPresetForm(r)
	if err != nil {
		http.Redirect(w, r, "/admin/boxes?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	result, err := s.db.Exec(`
		UPDATE box_presets
		SET
			box_type = ?,
			kg_default = ?,
			weight_factor = ?,
			notes = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, preset.BoxType, preset.KgDefault, preset.WeightFactor, preset.Notes, preset.Active, id)
	if err != nil {
		http.Error(w, "failed to update box preset", http.StatusInternalServerError)
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		http.Error(w, "failed to update box preset", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		http.NotFound(w, r)
		return
	}

	http.Redirect(w, r, "/admin/boxes?success=Tipo+de+caja+actualizado+correctamente", http.StatusSeeOther)
}

func parseRateConfigForm(r *http.Request) (rateConfig, error) {
	rates := rateConfig{Currency: "USD"}

	var err error
	if rates.RatePerKg, err = parseNonNegativeFloat(r.FormValue("rate_per_kg"), "rate_per_kg"); err != nil {
		return rates, err
	}
	if rates.DutyRate, err = parseFraction(r.FormValue("duty_rate"), "duty_rate"); err != nil {
		return rates, err
	}
	if rates.TruckingTotal, err = parseNonNegativeFloat(r.FormValue("trucking_total"), "trucking_total"); err != nil {
		return rates, err
	}
	if rates.MarginA, err = parseMargin(r.FormValue("margin_a"), "margin_a"); err != nil {
		return rates, err
	}
	if rates.MarginB, err = parseMargin(r.FormValue("margin_b"), "margin_b"); err != nil {
		return rates, err
	}

	return rates, nil
}

func parseNonNegativeFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s debe ser numérico", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s debe ser mayor o igual a 0", field)
	}
	return value, nil
}

func parseFraction(raw, field string) (float64, error) {
	value, err := parseNonNegativeFloat(raw, field)
	if err != nil {
		return 0, err
	}
	if value > 1 {
		return 0, fmt.Errorf("%s debe estar entre 0 y 1", field)
	}
	return value, nil
}

// parseMargin is stricter than parseFraction: a margin of exactly 1 would
// make the sell-price divisor zero, so it must stay below 1.
func parseMargin(raw, field string) (float64, error) {
	value, err := parseNonNegativeFloat(raw, field)
	if err != nil {
		return 0, err
	}
	if value >= 1 {
		return 0, fmt.Errorf("%s debe ser menor a 1", field)
	}
	return value, nil
}

func parseBoxPresetForm(r *http.Request) (boxPreset, error) {
	preset := boxPreset{
		BoxType: strings.ToUpper(strings.TrimSpace(r.FormValue("box_type"))),
		Notes:   strings.TrimSpace(r.FormValue("notes")),
		Active:  r.FormValue("active") == "1",
	}

	if preset.BoxType == "" {
		return preset, fmt.Errorf("box_type es requerido")
	}

	var err error
	if preset.KgDefault, err = parseNonNegativeFloat(r.FormValue("kg_default"), "kg_default"); err != nil {
		return preset, err
	}
	if preset.WeightFactor, err = parseNonNegativeFloat(r.FormValue("weight_factor"), "weight_factor"); err != nil {
		return preset, err
	}

	return preset, nil
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	templates, err := template.ParseFiles(
		"web/templates/layout.html",
		"web/templates/"+page,
	)
	if err != nil {
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" || r.URL.Path == "/static" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		if !isAuthenticated(r, s.auth) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isAuthenticated(r *http.Request, auth *authService) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}

	_, ok := auth.parseSession(cookie.Value)
	return ok
}

func (s *server) getRateConfig() (rateConfig, error) {
	var rc rateConfig
	err := s.db.QueryRow(`
		SELECT rate_per_kg, duty_rate, trucking_total, margin_a, margin_b, currency
		FROM rate_config
		WHERE id = 1
	`).Scan(
		&rc.RatePerKg,
		&rc.DutyRate,
		&rc.TruckingTotal,
		&rc.MarginA,
		&rc.MarginB,
		&rc.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rateConfig{}, fmt.Errorf("rate_config singleton not found")
		}
		return rateConfig{}, fmt.Errorf("query rate_config: %w", err)
	}
	return rc, nil
}

func (s *server) updateRateConfig(rc rateConfig) error {
	_, err := s.db.Exec(`
		UPDATE rate_config
		SET
			rate_per_kg = ?,
			duty_rate = ?,
			trucking_total = ?,
			margin_a = ?,
			margin_b = ?,
			currency = 'USD',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`,
		rc.RatePerKg,
		rc.DutyRate,
		rc.TruckingTotal,
		rc.MarginA,
		rc.MarginB,
	)
	if err != nil {
		return fmt.Errorf("update rate_config: %w", err)
	}

	return nil
}

func (s *server) listBoxPresets() ([]boxPreset, error) {
	rows, err := s.db.Query(`
		SELECT id, box_type, kg_default, weight_factor, COALESCE(notes, ''), active
		FROM box_presets
		ORDER BY box_type ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query box presets: %w", err)
	}
	defer rows.Close()

	presets := make([]boxPreset, 0)
	for rows.Next() {
		var p boxPreset
		if err := rows.Scan(&p.ID, &p.BoxType, &p.KgDefault, &p.WeightFactor, &p.Notes, &p.Active); err != nil {
			return nil, fmt.Errorf("scan box preset: %w", err)
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate box presets: %w", err)
	}

	return presets, nil
}

package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// boxPreset is one seeded box-type row: default weight in kg and the
// volumetric factor used for trucking allocation.
type boxPreset struct {
	boxType      string
	kgDefault    float64
	weightFactor float64
}

var defaultPresets = []boxPreset{
	{"FB", 30.0, 1.0},
	{"HB", 15.0, 0.5},
	{"QB", 7.5, 0.25},
}

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way: the admin user, the
// rate_config singleton and the three standard box presets exist after any
// number of runs, and re-running never duplicates or overwrites edits.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureRateConfig(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureBoxPresets(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	sum := sha256.Sum256([]byte(password))
	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hex.EncodeToString(sum[:])); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++

	return nil
}

func ensureRateConfig(tx *sql.Tx, stats *Stats) error {
	res, err := tx.Exec(`
		INSERT INTO rate_config (id, rate_per_kg, duty_rate, trucking_total, margin_a, margin_b, currency)
		VALUES (1, 0, 0.22, 0, 0.35, 0.40, 'USD')
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("insert default rate_config: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rate_config rows affected: %w", err)
	}
	stats.Inserts += int(affected)

	return nil
}

func ensureBoxPresets(tx *sql.Tx, stats *Stats) error {
	for _, p := range defaultPresets {
		res, err := tx.Exec(`
			INSERT INTO box_presets (box_type, kg_default, weight_factor, active)
			VALUES (?, ?, ?, TRUE)
			ON CONFLICT(box_type) DO NOTHING
		`, p.boxType, p.kgDefault, p.weightFactor)
		if err != nil {
			return fmt.Errorf("insert box preset %s: %w", p.boxType, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("box preset %s rows affected: %w", p.boxType, err)
		}
		stats.Inserts += int(affected)
	}

	return nil
}

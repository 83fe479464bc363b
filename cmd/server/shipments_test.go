package main

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestListShipmentsOrdersByDateDescAndReadsGrandTotal(t *testing.T) {
	db := newTestDB(t)
	srv := &server{db: db}

	seedStoredShipment(t, db, "2024-03-01 10:00:00", "id-1", "Primera", "145-111", `{"grand_landed_total": 1720.00}`)
	seedStoredShipment(t, db, "2024-03-03 12:00:00", "id-3", "Tercera", "145-333", `{"grand_landed_total": 980.40}`)
	seedStoredShipment(t, db, "2024-03-02 11:00:00", "id-2", "Segunda", "145-222", `{"grand_landed_total": 2410.75}`)

	shipments, err := srv.listShipments("")
	if err != nil {
		t.Fatalf("listShipments returned error: %v", err)
	}

	if len(shipments) != 3 {
		t.Fatalf("expected 3 shipments, got %d", len(shipments))
	}

	if shipments[0].Title != "Tercera" || shipments[1].Title != "Segunda" || shipments[2].Title != "Primera" {
		t.Fatalf("shipments are not sorted desc by created_at: %+v", shipments)
	}

	if shipments[0].GrandTotal != 980.40 || shipments[1].GrandTotal != 2410.75 || shipments[2].GrandTotal != 1720.00 {
		t.Fatalf("unexpected grand totals: %+v", shipments)
	}
}

func TestListShipmentsFiltersByTitleNotesAndAWB(t *testing.T) {
	db := newTestDB(t)
	srv := &server{db: db}

	seedStoredShipment(t, db, "2024-03-01 10:00:00", "id-1", "Rosas Ecuador", "145-111", `{"grand_landed_total": 100}`)
	seedStoredShipment(t, db, "2024-03-02 10:00:00", "id-2", "Hortensias", "145-222", `{"grand_landed_total": 200}`)
	seedStoredShipment(t, db, "2024-03-03 10:00:00", "id-3", "Mixto", "777-333", `{"grand_landed_total": 300}`)

	byTitle, err := srv.listShipments("Rosas")
	if err != nil {
		t.Fatalf("listShipments title filter returned error: %v", err)
	}
	if len(byTitle) != 1 || byTitle[0].Title != "Rosas Ecuador" {
		t.Fatalf("expected 1 shipment filtered by title, got %+v", byTitle)
	}

	byAWB, err := srv.listShipments("145-")
	if err != nil {
		t.Fatalf("listShipments awb filter returned error: %v", err)
	}
	if len(byAWB) != 2 {
		t.Fatalf("expected 2 shipments filtered by awb, got %+v", byAWB)
	}
}

func TestGetShipmentReturnsStoredPayload(t *testing.T) {
	db := newTestDB(t)
	srv := &server{db: db}

	seedStoredShipment(t, db, "2024-03-01 10:00:00", "id-1", "Primera", "145-111", `{"grand_landed_total": 1720}`)

	stored, err := srv.getShipment("id-1")
	if err != nil {
		t.Fatalf("getShipment returned error: %v", err)
	}
	if stored.PublicID != "id-1" || stored.AWB != "145-111" || stored.Title != "Primera" {
		t.Fatalf("unexpected stored shipment: %+v", stored)
	}
	if string(stored.Totals) != `{"grand_landed_total": 1720}` {
		t.Fatalf("unexpected totals payload: %s", stored.Totals)
	}

	if _, err := srv.getShipment("missing"); err == nil {
		t.Fatal("expected error for unknown public id")
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE shipments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_id TEXT NOT NULL UNIQUE,
			awb TEXT,
			title TEXT,
			notes TEXT,
			payload_json TEXT NOT NULL,
			totals_json TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE rate_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			rate_per_kg REAL NOT NULL DEFAULT 0,
			duty_rate REAL NOT NULL DEFAULT 0.22,
			trucking_total REAL NOT NULL DEFAULT 0,
			margin_a REAL NOT NULL DEFAULT 0.35,
			margin_b REAL NOT NULL DEFAULT 0.40,
			currency TEXT NOT NULL DEFAULT 'USD',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE box_presets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			box_type TEXT NOT NULL UNIQUE,
			kg_default REAL NOT NULL DEFAULT 0,
			weight_factor REAL NOT NULL DEFAULT 1.0,
			notes TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		INSERT INTO rate_config (id, duty_rate, margin_a, margin_b) VALUES (1, 0.22, 0.35, 0.40);
		INSERT INTO box_presets (box_type, kg_default, weight_factor) VALUES
			('FB', 30.0, 1.0),
			('HB', 15.0, 0.5),
			('QB', 7.5, 0.25);
	`)
	if err != nil {
		t.Fatalf("failed creating test schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func seedStoredShipment(t *testing.T, db *sql.DB, createdAt, publicID, title, awb, totalsJSON string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO shipments (public_id, created_at, title, awb, payload_json, totals_json)
		VALUES (?, ?, ?, ?, '{}', ?)
	`, publicID, createdAt, title, awb, totalsJSON)
	if err != nil {
		t.Fatalf("failed to seed shipment: %v", err)
	}
}

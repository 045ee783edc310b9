package testutil

import (
	"context"
	"os"
	"testing"

	"stay-booking/pkg/database"
	"stay-booking/pkg/utils"

	"go.uber.org/zap"
)

// SetupTestDB connects to TEST_DATABASE_URL and applies the migrations.
// Tests are skipped when no database is configured or reachable.
func SetupTestDB(t *testing.T) database.PgxIface {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.InitDB(utils.DatabaseConfig{URL: url, MaxConns: 20})
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}

	if err := database.Migrate(context.Background(), db, zap.NewNop()); err != nil {
		db.Close()
		t.Fatalf("migrate test database: %v", err)
	}

	CleanupTestDB(t, db)
	t.Cleanup(func() {
		CleanupTestDB(t, db)
		db.Close()
	})
	return db
}

// CleanupTestDB empties every table the tests write to.
func CleanupTestDB(t *testing.T, db database.PgxIface) {
	t.Helper()

	_, err := db.Exec(context.Background(), `
		TRUNCATE payment_events, payments, booking_items, bookings,
		         reservation_lines, reservations, capacity_slots,
		         combo_services, combos, equipment, services, customers
		CASCADE`)
	if err != nil {
		t.Logf("failed to clean test tables: %v", err)
	}
}

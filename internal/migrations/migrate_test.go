package migrations

import (
	"testing"

	"github.com/Simplici0/costnorms/internal/db"
)

func TestUpCreatesTechnologySchema(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	// Running again is a no-op.
	if err := Up(database, "../../migrations"); err != nil {
		t.Fatalf("rerun migrations: %v", err)
	}

	version, err := Version(database)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 1 {
		t.Fatalf("version = %d, want 1", version)
	}

	for _, table := range []string{"technologies", "operation_components", "operation_product_out_components", "orders"} {
		var name string
		if err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

package migrate_test

import (
	"testing"

	"planup/internal/db"
	"planup/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	var before int
	if err := conn.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&before); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if before == 0 {
		t.Fatal("no migrations applied")
	}

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var after int
	if err := conn.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&after); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if after != before {
		t.Fatalf("version changed on rerun: %d -> %d", before, after)
	}
}

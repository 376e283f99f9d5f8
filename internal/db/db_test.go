package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quillback/quillback/internal/config"
)

func TestDSN(t *testing.T) {
	got := DSN("127.0.0.1", 3306, "quillback")
	want := "root@tcp(127.0.0.1:3306)/quillback?parseTime=true"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestConnectSQLite_CreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "data", "quillback.db")

	gormDB, err := ConnectSQLite(path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestConnect_SelectsBackend(t *testing.T) {
	cfg, err := config.Parse([]byte("store:\n  path: \":memory:\"\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	gormDB, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := Connect(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestAutoMigrate_AllTables(t *testing.T) {
	gormDB, err := ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, table := range []string{"sessions", "session_metrics"} {
		if !gormDB.Migrator().HasTable(table) {
			t.Errorf("table %s missing after migrate", table)
		}
	}
}

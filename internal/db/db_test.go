package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)
}

func TestNewSQLite(t *testing.T) {
	db := NewSQLite("")

	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}
	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}
	if db.path != DefaultPath {
		t.Errorf("Expected default path %q, got %q", DefaultPath, db.path)
	}
}

func TestSQLiteInitCreatesSchema(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	db := NewSQLite(":memory:")
	defer db.Close()

	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}

	ctx := context.Background()
	for _, table := range []string{"records", "field_choices"} {
		rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
		if err != nil {
			t.Fatalf("Failed to query for table %s: %v", table, err)
		}
		if !rows.Next() {
			t.Errorf("Expected table %s to exist", table)
		}
		rows.Close()
	}

	rows, err := db.QueryContext(ctx, "PRAGMA table_info(records)")
	if err != nil {
		t.Fatalf("Failed to get records table info: %v", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var defaultValue sql.NullString
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			t.Fatalf("Failed to scan column info: %v", err)
		}
		columns[name] = true
	}

	for _, col := range []string{"id", "list", "payload", "payload_hash", "created_at", "modified_at"} {
		if !columns[col] {
			t.Errorf("Expected records table to have column %s", col)
		}
	}
}

func TestSQLiteInitIsIdempotent(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	path := filepath.Join(t.TempDir(), "kable.db")
	first := NewSQLite(path)
	if err := first.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	if _, err := first.ExecContext(context.Background(), `INSERT INTO records (list, payload) VALUES (?, ?)`, "L", []byte("x")); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	first.Close()

	second := NewSQLite(path)
	defer second.Close()
	if err := second.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}

	var count int
	if err := second.Get().QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected existing rows to survive re-init, got %d", count)
	}
}

func TestSQLiteClose(t *testing.T) {
	db := NewSQLite(":memory:")
	if err := db.Close(); err != nil {
		t.Errorf("Expected closing an unopened database to succeed, got %v", err)
	}

	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
	if err := db.Get().Ping(); err == nil {
		t.Error("Expected ping on a closed database to fail")
	}
}

func TestDBInterface(t *testing.T) {
	var _ DB = NewSQLite(":memory:")
}

package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func readEmbedded(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Files(), "migrations/*_"+suffix+".sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, got %v", suffix, matches)
	}
	data, err := fs.ReadFile(Files(), matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	return string(data)
}

func TestSacredTablesCarryOrganizationAndSmartCode(t *testing.T) {
	content := readEmbedded(t, "create_core_entities") + readEmbedded(t, "create_universal_transactions")

	for _, table := range []string{
		"core_entities",
		"core_dynamic_data",
		"core_relationships",
		"universal_transactions",
		"universal_transaction_lines",
	} {
		start := strings.Index(content, "CREATE TABLE IF NOT EXISTS "+table+" (")
		if start < 0 {
			t.Fatalf("missing table %s", table)
		}
		body := content[start:]
		body = body[:strings.Index(body, ");")]
		for _, col := range []string{"organization_id uuid NOT NULL", "smart_code text NOT NULL"} {
			if !strings.Contains(body, col) {
				t.Errorf("%s missing column %q", table, col)
			}
		}
	}
}

func TestTransactionMigrationContainsConstraints(t *testing.T) {
	content := readEmbedded(t, "create_universal_transactions")
	checks := []string{
		"FOREIGN KEY (transaction_id) REFERENCES universal_transactions(id) ON DELETE CASCADE",
		"CHECK (line_number >= 1)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_universal_transaction_lines_txn_number",
		"DROP TABLE IF EXISTS universal_transaction_lines",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationIndexesUnpublished(t *testing.T) {
	content := readEmbedded(t, "create_outbox")
	if !strings.Contains(content, "WHERE published_at IS NULL") {
		t.Fatal("expected partial index on unpublished events")
	}
}

func TestValidateDirAcceptsMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Ledger Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_ledger_index.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestValidateDirUsesEmbeddedCopyForDefaultDir(t *testing.T) {
	if err := ValidateDir(DefaultDir); err != nil {
		t.Fatalf("ValidateDir(DefaultDir): %v", err)
	}
}

func TestValidateFSRejectsReversedSections(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_reversed.sql": {Data: []byte("-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x();\n")},
	}
	if err := ValidateFS(fsys, "."); err == nil || !strings.Contains(err.Error(), "precedes") {
		t.Fatalf("expected ordering error, got %v", err)
	}
}

func TestValidateFSRejectsDuplicateVersions(t *testing.T) {
	body := []byte("-- +goose Up\n-- +goose Down\n")
	fsys := fstest.MapFS{
		"20260101000000_a.sql": {Data: body},
		"20260101000000_b.sql": {Data: body},
	}
	if err := ValidateFS(fsys, "."); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

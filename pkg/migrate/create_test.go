package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Offer Expiry!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, "_add_offer_expiry.sql") {
		t.Fatalf("unexpected filename %q", base)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatal("expected error for name without usable characters")
	}
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20260105090000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing down section to fail")
	}
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20260105090000_reversed.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected reversed sections to fail")
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	for _, name := range []string{"20260105090000_first.sql", "20260105090000_second.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected duplicate versions to fail")
	}
}

func TestMigrateToVersionRejectsBadVersion(t *testing.T) {
	if err := MigrateToVersion(context.Background(), nil, DefaultDir, "latest"); err == nil {
		t.Fatal("expected non-numeric version to fail")
	}
}

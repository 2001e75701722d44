package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/noor-academy/lessonledger/pkg/migrate"
	"go.uber.org/multierr"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	assertMigrationContains(t, "*_create_ledger.sql", []string{
		"CREATE TABLE IF NOT EXISTS balances",
		"CHECK (amount >= 0)",
		"uq_ledger_entries_account_seq",
		"ledger_entries is append-only",
		"DROP TABLE IF EXISTS ledger_entries",
	})
}

func TestSadaqahMigrationGuardsPoolBalance(t *testing.T) {
	assertMigrationContains(t, "*_create_transfers_and_sadaqah.sql", []string{
		"CHECK (total_donated - total_allocated >= 0)",
		"CHECK (from_user_id <> to_user_id)",
		"INSERT INTO sadaqah_pool (id) VALUES (1)",
	})
}

func TestEarningsMigrationRestrictsStatus(t *testing.T) {
	assertMigrationContains(t, "*_create_teacher_earnings.sql", []string{
		"'pending', 'held', 'cleared', 'processing', 'paid', 'refunded'",
		"idx_teacher_earnings_lesson",
		"DROP TABLE IF EXISTS teacher_payouts",
	})
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Index!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_index.sql") {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("validate generated migration: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_ok.sql":      {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000000_dupe.sql":    {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000100_no_down.sql": {Data: []byte("-- +goose Up\n")},
		"Bad-Name.sql":               {Data: []byte("")},
		"README.md":                  {Data: []byte("ignored")},
	}

	err := migrate.Validate(fsys)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", got, err)
	}
}

func TestBundledMatchesDisk(t *testing.T) {
	bundled, err := fs.Glob(migrate.Bundled(), "*.sql")
	if err != nil {
		t.Fatalf("glob bundled: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(bundled) == 0 || len(bundled) != len(onDisk) {
		t.Fatalf("bundled %d migrations, %d on disk", len(bundled), len(onDisk))
	}
	if err := migrate.Validate(migrate.Bundled()); err != nil {
		t.Fatalf("validate bundled: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatal("expected empty slug to be rejected")
	}
}

func assertMigrationContains(t *testing.T, pattern string, checks []string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

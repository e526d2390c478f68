package report

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the reports schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "report-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Foreign keys stay off in this helper so reports can reference devices
	// without seeding the devices table.
	migrationSQL := `
		CREATE TABLE reports (
			id          TEXT PRIMARY KEY,
			category    TEXT NOT NULL CHECK (category IN ('find', 'issue')),
			status      TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'resolved')),
			title       TEXT NOT NULL,
			detail      TEXT,
			location    TEXT,
			reported_by TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			resolved_at TEXT
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying reports migration: %v", err)
	}

	return db
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository(testDB(t))

	rep := &Report{
		Category:   CategoryFind,
		Title:      "Silver watch in room 204",
		Detail:     "Found under the bed during turnover",
		Location:   "Room 204",
		ReportedBy: "scanner-floor2-01",
	}
	if err := repo.Create(t.Context(), rep); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rep.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetByID(t.Context(), rep.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusOpen {
		t.Errorf("Status = %q, want %q", got.Status, StatusOpen)
	}
	if got.Title != rep.Title {
		t.Errorf("Title = %q, want %q", got.Title, rep.Title)
	}
	if got.ReportedBy != "scanner-floor2-01" {
		t.Errorf("ReportedBy = %q, want %q", got.ReportedBy, "scanner-floor2-01")
	}
}

func TestRepository_CreateValidation(t *testing.T) {
	repo := NewRepository(testDB(t))

	err := repo.Create(t.Context(), &Report{Category: "complaint", Title: "x", ReportedBy: "d"})
	if !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("Create() bad category error = %v, want %v", err, ErrInvalidCategory)
	}

	err = repo.Create(t.Context(), &Report{Category: CategoryIssue, ReportedBy: "d"})
	if !errors.Is(err, ErrMissingTitle) {
		t.Errorf("Create() missing title error = %v, want %v", err, ErrMissingTitle)
	}
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo := NewRepository(testDB(t))

	_, err := repo.GetByID(t.Context(), "rpt-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, ErrNotFound)
	}
}

func TestRepository_ListFiltered(t *testing.T) {
	repo := NewRepository(testDB(t))

	seed := []Report{
		{Category: CategoryFind, Title: "Umbrella in lobby", ReportedBy: "scanner-reception-01"},
		{Category: CategoryIssue, Title: "Leaking tap room 101", ReportedBy: "scanner-floor1-01"},
		{Category: CategoryIssue, Title: "Broken lamp room 102", ReportedBy: "scanner-floor1-01"},
	}
	for i := range seed {
		if err := repo.Create(t.Context(), &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := repo.List(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() = %d reports, want 3", len(all))
	}

	issues, err := repo.List(t.Context(), Filter{Category: CategoryIssue})
	if err != nil {
		t.Fatalf("List(issue) error = %v", err)
	}
	if len(issues) != 2 {
		t.Errorf("List(issue) = %d reports, want 2", len(issues))
	}

	if err := repo.Resolve(t.Context(), seed[1].ID); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	open, err := repo.List(t.Context(), Filter{Status: StatusOpen})
	if err != nil {
		t.Fatalf("List(open) error = %v", err)
	}
	if len(open) != 2 {
		t.Errorf("List(open) = %d reports, want 2", len(open))
	}
}

func TestRepository_Resolve(t *testing.T) {
	repo := NewRepository(testDB(t))

	rep := &Report{Category: CategoryIssue, Title: "Wobbly handrail", ReportedBy: "scanner-floor1-01"}
	if err := repo.Create(t.Context(), rep); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Resolve(t.Context(), rep.ID); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	got, _ := repo.GetByID(t.Context(), rep.ID)
	if got.Status != StatusResolved {
		t.Errorf("Status = %q, want %q", got.Status, StatusResolved)
	}
	if got.ResolvedAt == nil {
		t.Error("ResolvedAt should be set")
	}

	if err := repo.Resolve(t.Context(), rep.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second Resolve() error = %v, want %v", err, ErrAlreadyResolved)
	}

	if err := repo.Resolve(t.Context(), "rpt-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() missing error = %v, want %v", err, ErrNotFound)
	}
}

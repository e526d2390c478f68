package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultListLimit caps unbounded listings.
const defaultListLimit = 100

// Repository defines the interface for report persistence.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context, filter Filter) ([]Report, error)
	Resolve(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed report repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new report. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rep *Report) error {
	if !IsValidCategory(rep.Category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, rep.Category)
	}
	if rep.Title == "" {
		return ErrMissingTitle
	}
	if rep.ID == "" {
		rep.ID = "rpt-" + uuid.NewString()[:16]
	}
	if rep.Status == "" {
		rep.Status = StatusOpen
	}

	now := time.Now().UTC()
	rep.CreatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (id, category, status, title, detail, location, reported_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, string(rep.Category), string(rep.Status), rep.Title,
		nullString(rep.Detail), nullString(rep.Location), rep.ReportedBy,
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Report, error) {
	return scanReport(r.db.QueryRowContext(ctx,
		`SELECT id, category, status, title, detail, location, reported_by, created_at, resolved_at
		 FROM reports WHERE id = ?`, id))
}

// List returns reports matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Report, error) {
	query := `SELECT id, category, status, title, detail, location, reported_by, created_at, resolved_at
		 FROM reports WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}

	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		rep, err := scanReportRow(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// Resolve marks an open report as resolved.
func (r *SQLiteRepository) Resolve(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		string(StatusResolved), now, id, string(StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("resolving report: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing.Status == StatusResolved {
			return ErrAlreadyResolved
		}
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanReport scans a report from a single row query.
func scanReport(row *sql.Row) (*Report, error) {
	rep, err := scanReportRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rep, err
}

// scanReportRow scans a report from any scanner.
func scanReportRow(s scanner) (*Report, error) {
	var rep Report
	var category, status, createdAt string
	var detail, location, resolvedAt sql.NullString

	err := s.Scan(&rep.ID, &category, &status, &rep.Title, &detail, &location,
		&rep.ReportedBy, &createdAt, &resolvedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning report: %w", err)
	}

	rep.Category = Category(category)
	rep.Status = Status(status)
	if detail.Valid {
		rep.Detail = detail.String
	}
	if location.Valid {
		rep.Location = location.String
	}
	rep.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, resolvedAt.String) //nolint:errcheck // format is controlled
		rep.ResolvedAt = &t
	}

	return &rep, nil
}

// nullString converts an empty string to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

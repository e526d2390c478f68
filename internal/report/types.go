// Package report manages lost-property and maintenance reports filed by
// staff devices. It is the resource the device auth gate protects: find
// reports belong to front desk and housekeeping, issue reports to
// maintenance and housekeeping.
package report

import (
	"errors"
	"time"
)

// Category classifies a report.
type Category string

const (
	// CategoryFind is a found-property report (item left behind by a guest).
	CategoryFind Category = "find"

	// CategoryIssue is a maintenance issue (broken fitting, leak, fault).
	CategoryIssue Category = "issue"
)

// IsValidCategory returns true for a known report category.
func IsValidCategory(c Category) bool {
	return c == CategoryFind || c == CategoryIssue
}

// Status tracks a report's workflow state.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Report represents a single filed report.
type Report struct {
	ID         string     `json:"id"`
	Category   Category   `json:"category"`
	Status     Status     `json:"status"`
	Title      string     `json:"title"`
	Detail     string     `json:"detail,omitempty"`
	Location   string     `json:"location,omitempty"`
	ReportedBy string     `json:"reported_by"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Filter narrows a report listing.
type Filter struct {
	Category Category
	Status   Status
	Limit    int
}

// Sentinel errors for report operations.
var (
	ErrNotFound        = errors.New("report not found")
	ErrInvalidCategory = errors.New("invalid report category")
	ErrMissingTitle    = errors.New("report title is required")
	ErrAlreadyResolved = errors.New("report is already resolved")
)

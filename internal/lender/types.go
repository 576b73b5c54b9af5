// Package lender defines the Lender record, its field constraints, and the
// repository interface the HTTP and bulk-exchange layers depend on.
// This package has no transport or storage dependencies.
package lender

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Field constraints shared by the row validator and the store layer.
// Keeping them in one place prevents drift between CSV parsing and persistence.
const (
	NameMaxLength = 1024

	CodeLength = 3

	CommissionRateMin = 0.0
	CommissionRateMax = 500.0
)

var (
	// ErrNotFound is returned when no lender matches the lookup.
	ErrNotFound = errors.New("lender not found")

	// ErrDuplicateCode is returned when a create or update collides with an
	// existing lender code. Code uniqueness is enforced by the store at
	// commit time, never pre-checked.
	ErrDuplicateCode = errors.New("lender code already exists")

	// ErrInvalidOrdering is returned by List when the ordering term is not
	// one of the whitelisted columns.
	ErrInvalidOrdering = errors.New("unsupported ordering column")
)

// Lender is the persisted business record managed by this service.
// Field order here defines the CSV export column order.
type Lender struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Code                  string    `json:"code"`
	UpfrontCommissionRate float64   `json:"upfront_commission_rate"`
	TrialCommissionRate   float64   `json:"trial_commission_rate"`
	Active                bool      `json:"active"`
	Created               time.Time `json:"created"`
}

// CSVHeader returns the export column names in declaration order.
func (l *Lender) CSVHeader() []string {
	return []string{"id", "name", "code", "upfront_commission_rate", "trial_commission_rate", "active", "created"}
}

// CSVRecord returns the record's field values as CSV cells, matching CSVHeader.
func (l *Lender) CSVRecord() []string {
	return []string{
		l.ID,
		l.Name,
		l.Code,
		strconv.FormatFloat(l.UpfrontCommissionRate, 'g', -1, 64),
		strconv.FormatFloat(l.TrialCommissionRate, 'g', -1, 64),
		strconv.FormatBool(l.Active),
		l.Created.UTC().Format(time.RFC3339Nano),
	}
}

// CreateInput carries the fields accepted when creating a lender.
type CreateInput struct {
	Name                  string
	Code                  string
	UpfrontCommissionRate float64
	TrialCommissionRate   float64
	Active                bool
}

// UpdateInput carries the full replacement field set for an update.
type UpdateInput struct {
	Name                  string
	Code                  string
	UpfrontCommissionRate float64
	TrialCommissionRate   float64
	Active                bool
}

// ListQuery describes filtering, ordering, and pagination for List.
type ListQuery struct {
	// Active filters on the active flag when non-nil.
	Active *bool
	// Code filters on an exact code match when non-empty.
	Code string
	// OrderBy is one of the whitelisted column names; a leading '-' reverses
	// the direction. Empty means the default creation order.
	OrderBy string
	// Page is 1-based.
	Page     int
	PageSize int
}

// Page is one page of list results plus the total match count.
type Page struct {
	Count int
	Items []*Lender
}

// Repository is the lender store consumed by the HTTP and bulk layers.
//
// Create and Update report code collisions as ErrDuplicateCode. Lookups
// report missing records as ErrNotFound. ForEachOrderedByCreation streams
// records in creation order one at a time without materializing the set.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Lender, error)
	GetByCode(ctx context.Context, code string) (*Lender, error)
	First(ctx context.Context) (*Lender, error)
	ForEachOrderedByCreation(ctx context.Context, fn func(*Lender) error) error
	List(ctx context.Context, q ListQuery) (*Page, error)
	Update(ctx context.Context, code string, in UpdateInput) (*Lender, error)
	Delete(ctx context.Context, code string) error
}

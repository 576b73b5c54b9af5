// Package store implements the lender repository and credential lookup on
// PostgreSQL via pgx, plus an in-memory implementation used by tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brokerload/lenderdesk/internal/lender"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint hits.
const pgUniqueViolation = "23505"

const lenderColumns = "id, name, code, upfront_commission_rate, trial_commission_rate, active, created"

// LenderStore is the PostgreSQL-backed lender repository.
type LenderStore struct {
	pool *pgxpool.Pool
}

// NewLenderStore creates a lender store on the given connection pool.
func NewLenderStore(pool *pgxpool.Pool) *LenderStore {
	return &LenderStore{pool: pool}
}

func scanLender(row pgx.Row) (*lender.Lender, error) {
	out := &lender.Lender{}
	err := row.Scan(&out.ID, &out.Name, &out.Code, &out.UpfrontCommissionRate, &out.TrialCommissionRate, &out.Active, &out.Created)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a lender. The code uniqueness constraint lives in the
// database; a violation surfaces as lender.ErrDuplicateCode.
func (s *LenderStore) Create(ctx context.Context, in lender.CreateInput) (*lender.Lender, error) {
	q := `
INSERT INTO lenders (name, code, upfront_commission_rate, trial_commission_rate, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + lenderColumns
	out, err := scanLender(s.pool.QueryRow(ctx, q, in.Name, in.Code, in.UpfrontCommissionRate, in.TrialCommissionRate, in.Active))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("code %s: %w", in.Code, lender.ErrDuplicateCode)
		}
		return nil, err
	}
	return out, nil
}

// GetByCode fetches one lender by its code.
func (s *LenderStore) GetByCode(ctx context.Context, code string) (*lender.Lender, error) {
	q := `SELECT ` + lenderColumns + ` FROM lenders WHERE code = $1`
	out, err := scanLender(s.pool.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lender.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// First fetches the earliest-created lender, or lender.ErrNotFound when the
// table is empty.
func (s *LenderStore) First(ctx context.Context) (*lender.Lender, error) {
	q := `SELECT ` + lenderColumns + ` FROM lenders ORDER BY created LIMIT 1`
	out, err := scanLender(s.pool.QueryRow(ctx, q))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lender.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// ForEachOrderedByCreation streams every lender in creation order, invoking
// fn once per record. Iteration stops on the first error fn returns.
func (s *LenderStore) ForEachOrderedByCreation(ctx context.Context, fn func(*lender.Lender) error) error {
	q := `SELECT ` + lenderColumns + ` FROM lenders ORDER BY created`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		out := &lender.Lender{}
		if err := rows.Scan(&out.ID, &out.Name, &out.Code, &out.UpfrontCommissionRate, &out.TrialCommissionRate, &out.Active, &out.Created); err != nil {
			return err
		}
		if err := fn(out); err != nil {
			return err
		}
	}
	return rows.Err()
}

// listOrderColumns whitelists the columns the list endpoint may sort by.
var listOrderColumns = map[string]string{
	"created":                 "created",
	"code":                    "code",
	"upfront_commission_rate": "upfront_commission_rate",
	"trial_commission_rate":   "trial_commission_rate",
	"active":                  "active",
}

// List returns one page of lenders matching the query filters.
func (s *LenderStore) List(ctx context.Context, q lender.ListQuery) (*lender.Page, error) {
	var conds []string
	var args []any

	if q.Active != nil {
		args = append(args, *q.Active)
		conds = append(conds, fmt.Sprintf("active = $%d", len(args)))
	}
	if q.Code != "" {
		args = append(args, q.Code)
		conds = append(conds, fmt.Sprintf("code = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var count int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM lenders"+where, args...).Scan(&count); err != nil {
		return nil, err
	}

	orderBy, err := resolveOrder(q.OrderBy)
	if err != nil {
		return nil, err
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	args = append(args, pageSize, (page-1)*pageSize)
	sel := fmt.Sprintf("SELECT %s FROM lenders%s ORDER BY %s LIMIT $%d OFFSET $%d",
		lenderColumns, where, orderBy, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sel, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &lender.Page{Count: count, Items: []*lender.Lender{}}
	for rows.Next() {
		out := &lender.Lender{}
		if err := rows.Scan(&out.ID, &out.Name, &out.Code, &out.UpfrontCommissionRate, &out.TrialCommissionRate, &out.Active, &out.Created); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, out)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// resolveOrder maps a user-supplied ordering term onto a safe ORDER BY
// clause. A leading '-' reverses direction, mirroring the list API contract.
func resolveOrder(term string) (string, error) {
	if term == "" {
		return "created", nil
	}
	dir := ""
	if strings.HasPrefix(term, "-") {
		dir = " DESC"
		term = term[1:]
	}
	col, ok := listOrderColumns[term]
	if !ok {
		return "", fmt.Errorf("%w: %q", lender.ErrInvalidOrdering, term)
	}
	return col + dir, nil
}

// Update replaces the mutable fields of the lender addressed by code.
func (s *LenderStore) Update(ctx context.Context, code string, in lender.UpdateInput) (*lender.Lender, error) {
	q := `
UPDATE lenders
SET name = $1, code = $2, upfront_commission_rate = $3, trial_commission_rate = $4, active = $5
WHERE code = $6
RETURNING ` + lenderColumns
	out, err := scanLender(s.pool.QueryRow(ctx, q, in.Name, in.Code, in.UpfrontCommissionRate, in.TrialCommissionRate, in.Active, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lender.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("code %s: %w", in.Code, lender.ErrDuplicateCode)
		}
		return nil, err
	}
	return out, nil
}

// Delete removes the lender addressed by code.
func (s *LenderStore) Delete(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lenders WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lender.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

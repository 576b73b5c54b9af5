package store

import (
	"context"
	"errors"

	"github.com/brokerload/lenderdesk/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore resolves credential records from the users table.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a user store on the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// GetByUsername fetches one credential record, or auth.ErrUnknownUser.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	q := `SELECT id, username, password_hash, active FROM users WHERE username = $1`
	out := &auth.User{}
	err := s.pool.QueryRow(ctx, q, username).Scan(&out.ID, &out.Username, &out.PasswordHash, &out.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnknownUser
		}
		return nil, err
	}
	return out, nil
}

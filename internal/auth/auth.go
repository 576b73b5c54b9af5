// Package auth verifies HTTP Basic Authentication credentials against the
// user store. Authentication is a pure value flow: the gate returns an
// identity or ErrUnauthenticated, and callers thread the identity explicitly.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthenticated covers every authentication failure: missing or
// malformed header, unknown user, wrong password, inactive account. Callers
// translate it into a 401 response; it is never an internal fault.
var ErrUnauthenticated = errors.New("unauthenticated")

// User is a stored credential record.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Active       bool
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID   string
	Username string
}

// UserSource resolves usernames to stored credential records.
type UserSource interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// Authenticator verifies Basic Authentication headers against a UserSource.
type Authenticator struct {
	users UserSource
}

// NewAuthenticator creates an Authenticator over the given user source.
func NewAuthenticator(users UserSource) *Authenticator {
	return &Authenticator{users: users}
}

// ParseBasicAuth extracts the username and password from an Authorization
// header value. The value must consist of exactly two space-separated
// tokens, the first equal to "basic" case-insensitively, the second a
// base64-encoded "username:password" pair split on the first colon. Any
// deviation reports ok=false.
func ParseBasicAuth(header string) (username, password string, ok bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", false
	}

	pair := string(decoded)
	colon := strings.Index(pair, ":")
	if colon < 0 {
		return "", "", false
	}
	return pair[:colon], pair[colon+1:], true
}

// Authenticate resolves an Authorization header value to an active user
// identity. Every failure mode returns ErrUnauthenticated; a store fault
// other than a missing user is returned as-is.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Identity, error) {
	username, password, ok := ParseBasicAuth(header)
	if !ok {
		return nil, ErrUnauthenticated
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUnauthenticated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthenticated
	}

	return &Identity{UserID: user.ID, Username: user.Username}, nil
}

// ErrUnknownUser is returned by UserSource implementations when no user
// matches the username.
var ErrUnknownUser = errors.New("unknown user")

type identityKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

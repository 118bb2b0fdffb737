// Package session stores remote credentials for sync providers.
//
// A [Session] records which remote a vault is connected to (provider kind,
// endpoint, bearer token) together with an optional expiry. The [Store]
// interface abstracts persistence; [FileStore] keeps sessions as JSON files
// under the user's config directory, and [CLIStore] narrows a store to the
// single session the CLI cares about.
//
// Tokens are opaque to this package. Whatever `canopy auth login` was given
// is what `canopy sync` sends.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"
)

// DefaultTTL is how long a stored credential is trusted before the CLI
// asks the user to log in again. A session with a zero ExpiresAt never
// expires.
const DefaultTTL = 30 * 24 * time.Hour

// Session holds the credentials for one remote connection.
type Session struct {
	// ID names the session within a store.
	ID string `json:"id"`
	// Provider is the remote kind the token belongs to ("http", "s3", ...).
	Provider string `json:"provider"`
	// Endpoint is the remote the token was issued for.
	Endpoint string `json:"endpoint"`
	// Token is sent as a bearer token on every remote request.
	Token string `json:"token"`
	// User is a display label for who authorized the session. Optional.
	User string `json:"user,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is when the credential stops being trusted. The zero
	// value means the session never expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the session is past its expiry. Sessions
// without an expiry never expire.
func (s *Session) IsExpired() bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.ExpiresAt)
}

// Store is the interface for session persistence backends.
type Store interface {
	// Get retrieves a session by ID. Returns nil, nil when the session
	// does not exist or has expired.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, session *Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error
}

// GenerateID creates a cryptographically secure random session ID.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// New creates a session for the given remote. A zero ttl produces a
// session that never expires.
func New(provider, endpoint, token string, ttl time.Duration) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:        id,
		Provider:  provider,
		Endpoint:  endpoint,
		Token:     token,
		CreatedAt: now,
	}
	if ttl > 0 {
		sess.ExpiresAt = now.Add(ttl)
	}
	return sess, nil
}

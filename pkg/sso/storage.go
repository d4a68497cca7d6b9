package sso

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStore persists login sessions
type SessionStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSessionStore creates a session store. A zero ttl defaults to
// eight hours.
func NewSessionStore(db *sql.DB, ttl time.Duration) *SessionStore {
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	return &SessionStore{db: db, ttl: ttl}
}

// Create opens a session for a completed login
func (s *SessionStore) Create(ctx context.Context, userID int64, identity *Identity, samlSessionIndex string) (*Session, error) {
	session := &Session{
		ID:               uuid.NewString(),
		Backend:          identity.Backend,
		UserID:           userID,
		ExternalID:       identity.ExternalID,
		SAMLSessionIndex: samlSessionIndex,
		CreatedAt:        time.Now().UTC(),
	}
	session.ExpiresAt = session.CreatedAt.Add(s.ttl)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sso_sessions (id, backend, user_id, external_id, saml_session_index, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, session.Backend, session.UserID, session.ExternalID,
		session.SAMLSessionIndex, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get returns a live session by id
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	session := &Session{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, backend, user_id, external_id, saml_session_index, created_at, expires_at
		FROM sso_sessions
		WHERE id = $1 AND expires_at > NOW()
	`, id).Scan(&session.ID, &session.Backend, &session.UserID, &session.ExternalID,
		&session.SAMLSessionIndex, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Delete ends a session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sso_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep removes expired sessions and reports how many went
func (s *SessionStore) Sweep(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sso_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return result.RowsAffected()
}

// SQLNameResolver resolves organization and team names against the
// object tables.
type SQLNameResolver struct {
	db *sql.DB
}

// NewSQLNameResolver creates a resolver over the object database
func NewSQLNameResolver(db *sql.DB) *SQLNameResolver {
	return &SQLNameResolver{db: db}
}

// OrganizationIDByName implements NameResolver
func (r *SQLNameResolver) OrganizationIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM organizations WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve organization %q: %w", name, err)
	}
	return id, nil
}

// TeamIDByName implements NameResolver
func (r *SQLNameResolver) TeamIDByName(ctx context.Context, organization, team string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT t.id FROM teams t
		JOIN organizations o ON o.id = t.organization_id
		WHERE o.name = $1 AND t.name = $2
	`, organization, team).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve team %q in %q: %w", team, organization, err)
	}
	return id, nil
}

var _ NameResolver = (*SQLNameResolver)(nil)

package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/helmsmanhq/helmsman/pkg/objects"
)

// Store persists the role graph in SQL. Production runs on Postgres
// (lib/pq); tests run against an in-memory sqlite3 database with the
// same schema.
type Store struct {
	db *sql.DB
}

// NewStore creates a role store over the given database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL for the role graph tables. Parameter placeholders
// in queries use $n, which both lib/pq and mattn/go-sqlite3 accept.
const Schema = `
	CREATE TABLE IF NOT EXISTS role_grants (
		id INTEGER PRIMARY KEY,
		object_type TEXT NOT NULL,
		object_id INTEGER NOT NULL,
		role_name TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		granted_by INTEGER,
		granted_at TIMESTAMP NOT NULL,
		UNIQUE(object_type, object_id, role_name, user_id)
	);

	CREATE TABLE IF NOT EXISTS role_parents (
		child_object_type TEXT NOT NULL,
		child_object_id INTEGER NOT NULL,
		child_role_name TEXT NOT NULL,
		parent_object_type TEXT NOT NULL,
		parent_object_id INTEGER NOT NULL,
		parent_role_name TEXT NOT NULL,
		UNIQUE(child_object_type, child_object_id, child_role_name,
		       parent_object_type, parent_object_id, parent_role_name)
	);
`

// Migrate creates the role graph tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate role tables: %w", err)
	}
	return nil
}

// Grant records a direct membership
func (s *Store) Grant(ctx context.Context, grant *Grant) error {
	query := `
		INSERT INTO role_grants (object_type, object_id, role_name, user_id, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		string(grant.Role.ObjectType),
		grant.Role.ObjectID,
		string(grant.Role.Name),
		grant.UserID,
		grant.GrantedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	grant.GrantedAt = now
	return nil
}

// Revoke removes a direct membership
func (s *Store) Revoke(ctx context.Context, role RoleID, userID int64) error {
	query := `
		DELETE FROM role_grants
		WHERE object_type = $1 AND object_id = $2 AND role_name = $3 AND user_id = $4
	`
	_, err := s.db.ExecContext(ctx, query,
		string(role.ObjectType), role.ObjectID, string(role.Name), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

// AddParent records an implication edge: parent membership implies child membership
func (s *Store) AddParent(ctx context.Context, child, parent RoleID) error {
	query := `
		INSERT INTO role_parents (child_object_type, child_object_id, child_role_name,
		                          parent_object_type, parent_object_id, parent_role_name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(child.ObjectType), child.ObjectID, string(child.Name),
		string(parent.ObjectType), parent.ObjectID, string(parent.Name),
	)
	if err != nil {
		return fmt.Errorf("failed to add parent edge: %w", err)
	}
	return nil
}

// HasRole walks parent edges breadth-first from the role, checking for
// a direct grant at each level. The walk is bounded by the visited set
// so graph cycles terminate.
func (s *Store) HasRole(ctx context.Context, userID int64, role RoleID) (bool, error) {
	seen := make(map[RoleID]struct{})
	frontier := []RoleID{role}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}

		granted, err := s.hasDirectGrant(ctx, userID, current)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}

		parents, err := s.parentsOf(ctx, current)
		if err != nil {
			return false, err
		}
		frontier = append(frontier, parents...)
	}
	return false, nil
}

func (s *Store) hasDirectGrant(ctx context.Context, userID int64, role RoleID) (bool, error) {
	query := `
		SELECT COUNT(1) FROM role_grants
		WHERE object_type = $1 AND object_id = $2 AND role_name = $3 AND user_id = $4
	`
	var count int
	err := s.db.QueryRowContext(ctx, query,
		string(role.ObjectType), role.ObjectID, string(role.Name), userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query role grant: %w", err)
	}
	return count > 0, nil
}

func (s *Store) parentsOf(ctx context.Context, role RoleID) ([]RoleID, error) {
	query := `
		SELECT parent_object_type, parent_object_id, parent_role_name
		FROM role_parents
		WHERE child_object_type = $1 AND child_object_id = $2 AND child_role_name = $3
	`
	rows, err := s.db.QueryContext(ctx, query,
		string(role.ObjectType), role.ObjectID, string(role.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query parent edges: %w", err)
	}
	defer rows.Close()

	var parents []RoleID
	for rows.Next() {
		var objType, roleName string
		var objID int64
		if err := rows.Scan(&objType, &objID, &roleName); err != nil {
			return nil, fmt.Errorf("failed to scan parent edge: %w", err)
		}
		parents = append(parents, RoleID{
			ObjectType: objects.Type(objType),
			ObjectID:   objID,
			Name:       RoleName(roleName),
		})
	}
	return parents, rows.Err()
}

// ObjectRole resolves a role id to its membership predicate
func (s *Store) ObjectRole(role RoleID) Role {
	return storeRole{s: s, id: role}
}

type storeRole struct {
	s  *Store
	id RoleID
}

func (r storeRole) ContainsUser(ctx context.Context, userID int64) (bool, error) {
	return r.s.HasRole(ctx, userID, r.id)
}

var _ Membership = (*Store)(nil)

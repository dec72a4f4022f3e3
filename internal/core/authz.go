package core

// authz.go consults the server-side authorization store. Clients may cache
// role lists for display, but approve/reject/commit decisions are always
// checked here against the user_roles table, never against anything the
// client sent.

import (
	"context"
	"fmt"
)

// Roles recognized by the pipeline.
const (
	// RoleReviewer may approve/reject pending edits and commit batches.
	RoleReviewer = "reviewer"
	// RoleAdmin implies every other role.
	RoleAdmin = "admin"
)

// RoleStore answers role-membership questions from the database.
type RoleStore struct {
	db DBTX
}

// NewRoleStore creates a role store over the given pool.
func NewRoleStore(db DBTX) *RoleStore {
	return &RoleStore{db: db}
}

// HasRole reports whether the actor holds the role. Admins hold every role.
func (r *RoleStore) HasRole(ctx context.Context, actor, role string) (bool, error) {
	if actor == "" {
		return false, nil
	}

	var has bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_roles
			WHERE actor = $1 AND role IN ($2, $3)
		)`, actor, role, RoleAdmin).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("role lookup: %w", err)
	}
	return has, nil
}

// requireReviewer returns ErrUnauthorized unless the context actor holds the
// reviewer role.
func (s *Service) requireReviewer(ctx context.Context) error {
	ok, err := s.roles.HasRole(ctx, ActorFromContext(ctx), RoleReviewer)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

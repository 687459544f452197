package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"printhub/internal/apperr"
	"printhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GrantStore reads role → permission links
type GrantStore interface {
	PermissionCodesForRole(ctx context.Context, roleName string) ([]string, error)
}

// UserLookup loads a user with its role preloaded
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Resolver computes permission sets straight from the store on every call
type Resolver struct {
	grants GrantStore
	users  UserLookup
}

func NewResolver(grants GrantStore, users UserLookup) *Resolver {
	return &Resolver{grants: grants, users: users}
}

// PermissionsForRole returns the role's grants. An unknown role or a role
// without grants yields an empty set, not an error.
func (r *Resolver) PermissionsForRole(ctx context.Context, role string) (Set, error) {
	if role == "" {
		return Set{}, nil
	}
	codes, err := r.grants.PermissionCodesForRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions for role %q: %w", role, err)
	}
	return NewSet(codes...), nil
}

// PermissionsForUser resolves the user's role, then its grants
func (r *Resolver) PermissionsForUser(ctx context.Context, userID uuid.UUID) (Set, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return r.PermissionsForRole(ctx, user.RoleName())
}

// CatalogStore lists the permissions present in the database
type CatalogStore interface {
	ListPermissions(ctx context.Context) ([]model.Permission, error)
}

// ValidateCatalog fails when a declared permission is missing from the live catalog
func ValidateCatalog(ctx context.Context, store CatalogStore, declared []Definition) error {
	perms, err := store.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("load permission catalog: %w", err)
	}

	live := make(Set, len(perms))
	for _, p := range perms {
		parsed, err := Parse(p.Code)
		if err != nil {
			return err
		}
		live[parsed] = struct{}{}
	}

	var missing []string
	for _, d := range declared {
		if !live.Has(d.Code) {
			missing = append(missing, string(d.Code))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("permissions missing from catalog: %s", strings.Join(missing, ", "))
	}
	return nil
}

package rbac

import (
	"context"

	"printhub/internal/apperr"

	"github.com/google/uuid"
)

// Identity is an already verified caller
type Identity struct {
	UserID uuid.UUID
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by the gate, or nil
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// ActorID returns the caller's user id for audit rows
func ActorID(ctx context.Context) *uuid.UUID {
	if id := IdentityFrom(ctx); id != nil {
		uid := id.UserID
		return &uid
	}
	return nil
}

type RoleResolver interface {
	PermissionsForRole(ctx context.Context, role string) (Set, error)
}

// Gate decides allow or deny for a caller and a required permission
type Gate struct {
	resolver RoleResolver
}

func NewGate(resolver *Resolver) *Gate {
	return &Gate{resolver: resolver}
}

// NewGateWith builds a gate over any resolver
func NewGateWith(resolver RoleResolver) *Gate {
	return &Gate{resolver: resolver}
}

// Authorize returns nil to allow, Unauthenticated when there is no caller,
// and Forbidden when the caller's role lacks the permission.
func (g *Gate) Authorize(ctx context.Context, id *Identity, required Permission) error {
	if id == nil || id.UserID == uuid.Nil {
		return apperr.Unauthenticated("authentication required")
	}

	perms, err := g.resolver.PermissionsForRole(ctx, id.Role)
	if err != nil {
		return apperr.Internal(err, "verify permissions")
	}
	if !perms.Has(required) {
		return apperr.Forbidden("missing permission '%s'", required)
	}
	return nil
}

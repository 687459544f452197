package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,max=50"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // permission codes
}

type UpdateRolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

type PermissionGroup struct {
	Group       string               `json:"group"`
	Permissions []PermissionResponse `json:"permissions"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]PermissionGroup, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo      repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) RoleService {
	return &roleService{repo: repo, auditRepo: auditRepo, txManager: txManager}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, dbError(err, "role")
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}
	role, err := s.repo.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		return nil, dbError(err, "role")
	}
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	role := &model.Role{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		IsSystem:    false,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindByName(txCtx, role.Name); err == nil {
			return apperr.Conflict("role %q already exists", role.Name)
		}
		if err := s.repo.Create(txCtx, role); err != nil {
			return dbError(err, "role")
		}
		if len(req.Permissions) > 0 {
			perms, err := s.resolvePermissions(txCtx, req.Permissions)
			if err != nil {
				return err
			}
			if err := s.repo.ReplacePermissions(txCtx, role.ID, perms); err != nil {
				return dbError(err, "role permissions")
			}
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCreateRole, role.ID.String(), role.Name,
			map[string][]string{"permissions": req.Permissions})
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, role.ID.String())
}

// DeleteRole refuses system roles and roles still assigned to users
func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := parseID(id, "role")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.repo.FindByID(txCtx, roleID)
		if err != nil {
			return dbError(err, "role")
		}
		if role.IsSystem {
			return apperr.Conflict("cannot delete system role %q", role.Name)
		}
		users, err := s.repo.CountUsers(txCtx, roleID)
		if err != nil {
			return dbError(err, "role")
		}
		if users > 0 {
			return apperr.Conflict("role %q is assigned to %d user(s)", role.Name, users)
		}
		if err := s.repo.Delete(txCtx, roleID); err != nil {
			return dbError(err, "role")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionDeleteRole, role.ID.String(), role.Name, nil)
	})
}

// ListPermissions returns the catalog grouped by resource
func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionGroup, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, dbError(err, "permission")
	}

	index := map[string]int{}
	groups := []PermissionGroup{}
	for _, p := range perms {
		i, ok := index[p.Group]
		if !ok {
			i = len(groups)
			index[p.Group] = i
			groups = append(groups, PermissionGroup{Group: p.Group})
		}
		groups[i].Permissions = append(groups[i].Permissions, toPermissionResponse(p))
	}
	return groups, nil
}

// UpdateRolePermissions replaces the role's whole grant set in one transaction
func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	id, err := parseID(roleID, "role")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return dbError(err, "role")
		}
		perms, err := s.resolvePermissions(txCtx, req.Permissions)
		if err != nil {
			return err
		}
		if err := s.repo.ReplacePermissions(txCtx, id, perms); err != nil {
			return dbError(err, "role permissions")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionUpdateRolePerms, role.ID.String(), role.Name,
			map[string][]string{"permissions": req.Permissions})
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, roleID)
}

// resolvePermissions maps codes to catalog rows and rejects anything unknown
func (s *roleService) resolvePermissions(ctx context.Context, codes []string) ([]model.Permission, error) {
	wanted := make([]string, 0, len(codes))
	seen := map[string]bool{}
	for _, c := range codes {
		p, err := rbac.Parse(c)
		if err != nil {
			return nil, apperr.InvalidInput("%v", err)
		}
		if !seen[p.String()] {
			seen[p.String()] = true
			wanted = append(wanted, p.String())
		}
	}

	perms, err := s.repo.FindPermissionsByCodes(ctx, wanted)
	if err != nil {
		return nil, dbError(err, "permission")
	}
	if len(perms) != len(wanted) {
		found := map[string]bool{}
		for _, p := range perms {
			found[p.Code] = true
		}
		var unknown []string
		for _, c := range wanted {
			if !found[c] {
				unknown = append(unknown, c)
			}
		}
		return nil, apperr.InvalidInput("unknown permissions: %s", strings.Join(unknown, ", "))
	}
	return perms, nil
}

// defaultRoles lists the grants each built-in role starts with.
// admin is special-cased to receive the whole catalog.
var defaultRoles = []struct {
	Name        string
	Description string
	Grants      []rbac.Permission
}{
	{Name: "admin", Description: "Full access to every feature"},
	{
		Name:        "manager",
		Description: "Runs sales, maintenance and stock; cannot delete users or edit roles",
	},
	{
		Name:        "employee",
		Description: "Technician handling maintenance work",
		Grants: []rbac.Permission{
			rbac.PrintersView,
			rbac.MaintenanceView, rbac.MaintenanceEdit, rbac.MaintenanceComplete,
			rbac.InventoryView,
			rbac.SalesView,
		},
	},
	{
		Name:        "client",
		Description: "Customer who can report printer issues",
		Grants: []rbac.Permission{
			rbac.PrintersView,
			rbac.MaintenanceView, rbac.MaintenanceCreate,
		},
	},
}

// SeedDefaultRolesAndPermissions creates the permission catalog and the
// built-in roles. Existing role grants are left alone except for admin,
// which is always topped up to the full catalog.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		all := make([]model.Permission, 0, len(rbac.Catalog))
		byCode := make(map[rbac.Permission]model.Permission, len(rbac.Catalog))
		for _, def := range rbac.Catalog {
			p := model.Permission{Code: def.Code.String(), Name: def.Description, Group: def.Code.Resource()}
			if err := s.repo.FindOrCreatePermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", def.Code, err)
			}
			all = append(all, p)
			byCode[def.Code] = p
		}

		for _, def := range defaultRoles {
			role, err := s.repo.FindByName(txCtx, def.Name)
			created := false
			switch {
			case isNotFound(err):
				role = &model.Role{Name: def.Name, Description: def.Description, IsSystem: true}
				if err := s.repo.Create(txCtx, role); err != nil {
					return fmt.Errorf("failed to seed role '%s': %w", def.Name, err)
				}
				created = true
			case err != nil:
				return fmt.Errorf("failed to load role '%s': %w", def.Name, err)
			}

			var grants []model.Permission
			switch {
			case def.Name == "admin":
				grants = all
			case !created:
				continue
			case def.Name == "manager":
				for _, p := range all {
					if p.Code != rbac.UsersDelete.String() && p.Code != rbac.RolesEdit.String() {
						grants = append(grants, p)
					}
				}
			default:
				for _, code := range def.Grants {
					grants = append(grants, byCode[code])
				}
			}

			if err := s.repo.ReplacePermissions(txCtx, role.ID, grants); err != nil {
				return fmt.Errorf("failed to assign permissions to role '%s': %w", def.Name, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Code < perms[j].Code })

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}

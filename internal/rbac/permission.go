package rbac

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Permission is a resource:action capability string. New capabilities are
// declared here and in the permissions table; the gate itself is generic.
type Permission string

const (
	UsersView   Permission = "users:view"
	UsersCreate Permission = "users:create"
	UsersEdit   Permission = "users:edit"
	UsersDelete Permission = "users:delete"

	PrintersView   Permission = "printers:view"
	PrintersCreate Permission = "printers:create"
	PrintersEdit   Permission = "printers:edit"
	PrintersDelete Permission = "printers:delete"

	SalesView   Permission = "sales:view"
	SalesCreate Permission = "sales:create"
	SalesEdit   Permission = "sales:edit"
	SalesDelete Permission = "sales:delete"
	SalesCancel Permission = "sales:cancel"

	MaintenanceView     Permission = "maintenance:view"
	MaintenanceCreate   Permission = "maintenance:create"
	MaintenanceEdit     Permission = "maintenance:edit"
	MaintenanceDelete   Permission = "maintenance:delete"
	MaintenanceComplete Permission = "maintenance:complete"

	InventoryView   Permission = "inventory:view"
	InventoryCreate Permission = "inventory:create"
	InventoryEdit   Permission = "inventory:edit"
	InventoryDelete Permission = "inventory:delete"

	RolesView Permission = "roles:view"
	RolesEdit Permission = "roles:edit"

	AuditView Permission = "audit:view"
)

// Definition describes one catalog entry for seeding
type Definition struct {
	Code        Permission
	Description string
}

// Catalog lists every permission the application declares
var Catalog = []Definition{
	{UsersView, "View users"},
	{UsersCreate, "Create users"},
	{UsersEdit, "Edit users"},
	{UsersDelete, "Delete users"},
	{PrintersView, "View printers"},
	{PrintersCreate, "Register printers"},
	{PrintersEdit, "Edit printers"},
	{PrintersDelete, "Delete printers"},
	{SalesView, "View sales and rentals"},
	{SalesCreate, "Create sales and rentals"},
	{SalesEdit, "Complete sales and rentals"},
	{SalesDelete, "Delete sales"},
	{SalesCancel, "Cancel sales and rentals"},
	{MaintenanceView, "View maintenance requests"},
	{MaintenanceCreate, "Open maintenance requests"},
	{MaintenanceEdit, "Assign and record maintenance work"},
	{MaintenanceDelete, "Cancel maintenance requests"},
	{MaintenanceComplete, "Complete maintenance requests"},
	{InventoryView, "View inventory"},
	{InventoryCreate, "Add inventory items"},
	{InventoryEdit, "Edit and restock inventory"},
	{InventoryDelete, "Delete inventory items"},
	{RolesView, "View roles and permissions"},
	{RolesEdit, "Manage roles and grants"},
	{AuditView, "View the audit log"},
}

var permissionPattern = regexp.MustCompile(`^[a-z][a-z_]*:[a-z][a-z_]*$`)

// Parse validates the resource:action shape of s
func Parse(s string) (Permission, error) {
	s = strings.TrimSpace(s)
	if !permissionPattern.MatchString(s) {
		return "", fmt.Errorf("invalid permission %q: expected resource:action", s)
	}
	return Permission(s), nil
}

func (p Permission) String() string {
	return string(p)
}

// Resource returns the part before the colon, used to group the catalog
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// Set is an unordered collection of permissions
type Set map[Permission]struct{}

func NewSet(codes ...string) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s[Permission(c)] = struct{}{}
	}
	return s
}

func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Strings returns the sorted permission codes
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

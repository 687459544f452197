package service

import (
	"context"
	"strings"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/auth"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TechnicianRoles are the roles listed as assignable technicians
var TechnicianRoles = []string{"employee", "admin"}

// DTOs for Request validation
type CreateUserRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Company    string `json:"company"`
}

type UpdateUserRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=1"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Password   *string `json:"password" binding:"omitempty,min=6"`
	Role       *string `json:"role" binding:"omitempty,min=1"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	Company    *string `json:"company"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserListQuery struct {
	Search string
	Role   string
	Page   int
	Limit  int
}

// UserResponse is a User without sensitive fields
type UserResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	RoleID     uuid.UUID  `json:"role_id"`
	Department string     `json:"department"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
	Company    string     `json:"company"`
	LastLogin  *time.Time `json:"last_login"`
	LastPing   *time.Time `json:"last_ping"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

type LoginResponse struct {
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
	Permissions []string     `json:"permissions"`
}

type MeResponse struct {
	User        UserResponse `json:"user"`
	Permissions []string     `json:"permissions"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*LoginResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*MeResponse, error)
	Ping(ctx context.Context, userID uuid.UUID) error
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, query UserListQuery) ([]UserResponse, int64, error)
	ListTechnicians(ctx context.Context) ([]UserResponse, error)
	UserPermissions(ctx context.Context, id string) ([]string, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
}

type userService struct {
	repo            repository.UserRepository
	roleRepo        repository.RoleRepository
	maintenanceRepo repository.MaintenanceRepository
	saleRepo        repository.SaleRepository
	auditRepo       repository.AuditRepository
	printers        PrinterStatusCoordinator
	txManager       repository.TransactionManager
	tokens          *auth.TokenManager
	resolver        *rbac.Resolver
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	roleRepo repository.RoleRepository,
	maintenanceRepo repository.MaintenanceRepository,
	saleRepo repository.SaleRepository,
	auditRepo repository.AuditRepository,
	printers PrinterStatusCoordinator,
	txManager repository.TransactionManager,
	tokens *auth.TokenManager,
	resolver *rbac.Resolver,
) UserService {
	return &userService{
		repo:            repo,
		roleRepo:        roleRepo,
		maintenanceRepo: maintenanceRepo,
		saleRepo:        saleRepo,
		auditRepo:       auditRepo,
		printers:        printers,
		txManager:       txManager,
		tokens:          tokens,
		resolver:        resolver,
	}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.RoleName(),
		RoleID:     user.RoleID,
		Department: user.Department,
		Phone:      user.Phone,
		Address:    user.Address,
		Company:    user.Company,
		LastLogin:  user.LastLogin,
		LastPing:   user.LastPing,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  user.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	user := &model.User{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Password:   string(hashedPassword),
		Department: req.Department,
		Phone:      req.Phone,
		Address:    req.Address,
		Company:    req.Company,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.FindByName(txCtx, req.Role)
		if err != nil {
			if isNotFound(err) {
				return apperr.InvalidInput("unknown role %q", req.Role)
			}
			return dbError(err, "role")
		}
		user.RoleID = role.ID
		user.Role = role

		if _, err := s.repo.GetByEmail(txCtx, user.Email); err == nil {
			return apperr.Conflict("email already exists")
		}
		if err := s.repo.Create(txCtx, user); err != nil {
			return dbError(err, "user")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCreateUser, user.ID.String(), user.Email,
			map[string]string{"role": role.Name})
	})
	if err != nil {
		return nil, err
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*LoginResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Unauthenticated("invalid email or password")
		}
		return nil, dbError(err, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthenticated("invalid email or password")
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.RoleName())
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate token")
	}

	now := time.Now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, dbError(err, "user")
	}
	user.LastLogin = &now

	perms, err := s.resolver.PermissionsForRole(ctx, user.RoleName())
	if err != nil {
		return nil, apperr.Internal(err, "failed to resolve permissions")
	}

	return &LoginResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        *mapToResponse(user),
		Permissions: perms.Strings(),
	}, nil
}

func (s *userService) Me(ctx context.Context, userID uuid.UUID) (*MeResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, dbError(err, "user")
	}
	perms, err := s.resolver.PermissionsForRole(ctx, user.RoleName())
	if err != nil {
		return nil, apperr.Internal(err, "failed to resolve permissions")
	}
	return &MeResponse{User: *mapToResponse(user), Permissions: perms.Strings()}, nil
}

func (s *userService) Ping(ctx context.Context, userID uuid.UUID) error {
	return dbError(s.repo.TouchLastPing(ctx, userID, time.Now()), "user")
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, dbError(err, "user")
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, query UserListQuery) ([]UserResponse, int64, error) {
	page, limit := normalizePage(query.Page, query.Limit)

	users, total, err := s.repo.List(ctx, repository.UserFilter{
		Search:   strings.TrimSpace(query.Search),
		RoleName: query.Role,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, dbError(err, "user")
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}

func (s *userService) ListTechnicians(ctx context.Context) ([]UserResponse, error) {
	users, err := s.repo.ListByRoleNames(ctx, TechnicianRoles)
	if err != nil {
		return nil, dbError(err, "user")
	}
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, nil
}

func (s *userService) UserPermissions(ctx context.Context, id string) ([]string, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	perms, err := s.resolver.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, dbError(err, "user")
	}
	return perms.Strings(), nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err = s.repo.GetByID(txCtx, userID)
		if err != nil {
			return dbError(err, "user")
		}

		if req.Role != nil && *req.Role != user.RoleName() {
			role, err := s.roleRepo.FindByName(txCtx, *req.Role)
			if err != nil {
				if isNotFound(err) {
					return apperr.InvalidInput("unknown role %q", *req.Role)
				}
				return dbError(err, "role")
			}
			user.RoleID = role.ID
			user.Role = role
		}

		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			if email != user.Email {
				if _, err := s.repo.GetByEmail(txCtx, email); err == nil {
					return apperr.Conflict("email already exists")
				}
				user.Email = email
			}
		}
		if req.Password != nil {
			hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
			if err != nil {
				return apperr.Internal(err, "failed to hash password")
			}
			user.Password = string(hashed)
		}
		if req.Name != nil {
			user.Name = strings.TrimSpace(*req.Name)
		}
		if req.Department != nil {
			user.Department = *req.Department
		}
		if req.Phone != nil {
			user.Phone = *req.Phone
		}
		if req.Address != nil {
			user.Address = *req.Address
		}
		if req.Company != nil {
			user.Company = *req.Company
		}

		if err := s.repo.Update(txCtx, user); err != nil {
			return dbError(err, "user")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionUpdateUser, user.ID.String(), user.Email,
			map[string]string{"role": user.RoleName()})
	})
	if err != nil {
		return nil, err
	}

	return mapToResponse(user), nil
}

// DeleteUser removes the user together with the maintenance requests and
// sales that reference them, all in one transaction.
func (s *userService) DeleteUser(ctx context.Context, id string) error {
	userID, err := parseID(id, "user")
	if err != nil {
		return err
	}
	if actor := rbac.ActorID(ctx); actor != nil && *actor == userID {
		return apperr.Conflict("you cannot delete your own account")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetByID(txCtx, userID)
		if err != nil {
			return dbError(err, "user")
		}

		open, err := s.maintenanceRepo.ListOpenByUser(txCtx, userID)
		if err != nil {
			return dbError(err, "maintenance request")
		}
		rentals, err := s.saleRepo.ListCompletedRentals(txCtx, userID)
		if err != nil {
			return dbError(err, "sale")
		}

		requests, err := s.maintenanceRepo.DeleteByUser(txCtx, userID)
		if err != nil {
			return dbError(err, "maintenance request")
		}
		sales, err := s.saleRepo.DeleteByClient(txCtx, userID)
		if err != nil {
			return dbError(err, "sale")
		}
		if err := s.repo.Delete(txCtx, userID); err != nil {
			return dbError(err, "user")
		}

		// Printers held by the removed requests and rentals go back to available
		released := map[uuid.UUID]bool{}
		for _, r := range open {
			if released[r.PrinterID] {
				continue
			}
			released[r.PrinterID] = true
			printerID := r.PrinterID
			if _, err := s.printers.ReleaseFromMaintenance(txCtx, printerID, func(ctx context.Context) (int64, error) {
				return s.maintenanceRepo.CountOpenForPrinter(ctx, printerID, uuid.Nil)
			}); err != nil {
				return err
			}
		}
		for _, sale := range rentals {
			if _, err := s.printers.TransitionFrom(txCtx, sale.PrinterID, model.PrinterRented, model.PrinterAvailable); err != nil {
				return err
			}
		}

		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionDeleteUser, user.ID.String(), user.Email,
			map[string]int64{"maintenance_requests": requests, "sales": sales})
	})
}

// EnsureAdmin creates the bootstrap admin account unless a user with that
// email already exists. It reports whether an account was created.
func (s *userService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, dbError(err, "user")
	}

	_, err := s.CreateUser(ctx, CreateUserRequest{
		Name:     "System Administrator",
		Email:    email,
		Password: password,
		Role:     "admin",
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

package repository

import (
	"context"
	"strings"
	"time"

	"printhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserFilter narrows user listings
type UserFilter struct {
	Search   string
	RoleName string
	Page     int
	Limit    int
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter UserFilter) ([]model.User, int64, error)
	ListByRoleNames(ctx context.Context, roleNames []string) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	TouchLastPing(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Role").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Role").First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Search != "" {
			like := "%" + strings.ToLower(filter.Search) + "%"
			tx = tx.Where("LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ?", like, like)
		}
		if filter.RoleName != "" {
			tx = tx.Joins("JOIN roles ON roles.id = users.role_id").Where("roles.name = ?", filter.RoleName)
		}
		return tx
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Scopes(scope).Preload("Role").
		Order("users.created_at desc").
		Offset(offset).Limit(filter.Limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) ListByRoleNames(ctx context.Context, roleNames []string) ([]model.User, error) {
	var users []model.User
	err := GetDB(ctx, r.db).
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.name IN ?", roleNames).
		Preload("Role").
		Order("users.name asc").
		Find(&users).Error
	return users, err
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit("Role").Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).UpdateColumn("last_login", at).Error
}

func (r *userRepository) TouchLastPing(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).UpdateColumn("last_ping", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

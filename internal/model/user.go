package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a staff member or a client of the company
type User struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string     `gorm:"type:varchar(255);not null" json:"name"`
	Email      string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"type:varchar(255);not null" json:"-"`
	RoleID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"role_id"`
	Role       *Role      `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"role,omitempty"`
	Department string     `gorm:"type:varchar(100)" json:"department"`
	Phone      string     `gorm:"type:varchar(30)" json:"phone"`
	Address    string     `gorm:"type:text" json:"address"`
	Company    string     `gorm:"type:varchar(255)" json:"company"`
	LastLogin  *time.Time `json:"last_login"`
	LastPing   *time.Time `json:"last_ping"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// RoleName returns the preloaded role name, or empty when Role was not loaded
func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

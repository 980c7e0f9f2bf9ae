package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

type User struct {
	ID             string    `gorm:"primaryKey;size:36"`
	Email          string    `gorm:"uniqueIndex;not null"`
	FullName       string
	PasswordHash   string    `gorm:"not null"` // bcrypt
	Role           UserRole  `gorm:"not null;default:'member'"`
	CompanyID      string    `gorm:"index;size:36;not null"`
	ActiveStatus   bool      `gorm:"not null;default:true"`
	LastLogin      time.Time
	FailedAttempts int       `gorm:"not null;default:0"`
	LockoutUntil   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Sessions       []Session
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

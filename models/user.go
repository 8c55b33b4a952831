package models

import (
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
	// RoleUser marks accounts provisioned for guest checkouts.
	RoleUser UserRole = "user"
)

type User struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	Phone              string     `json:"phone" gorm:"uniqueIndex;not null"`
	Email              *string    `json:"email,omitempty" gorm:"uniqueIndex"`
	Name               string     `json:"name" gorm:"not null"`
	PasswordHash       string     `json:"-"`
	Role               UserRole   `json:"role" gorm:"not null;default:'student'"`
	Block              string     `json:"block"`
	ClassNumber        string     `json:"classNumber"`
	ProfileCompleted   bool       `json:"profileCompleted" gorm:"default:false"`
	PhoneVerified      bool       `json:"phoneVerified" gorm:"default:false"`
	EmailVerified      bool       `json:"emailVerified" gorm:"default:false"`
	OTPCode            string     `json:"-"`
	OTPExpiresAt       *time.Time `json:"-"`
	EmailCode          string     `json:"-"`
	EmailCodeExpiresAt *time.Time `json:"-"`
	LoginAttempts      int        `json:"-" gorm:"default:0"`
	LockUntil          *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// HasPassword reports whether the account can use the password login path.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsLocked reports whether a lockout window is still running at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

package models

import (
	"time"
)

// AccountStatus is the account lifecycle state.
// incomplete -> pending -> {active, rejected}; active and rejected are terminal.
type AccountStatus string

const (
	StatusIncomplete AccountStatus = "incomplete"
	StatusPending    AccountStatus = "pending"
	StatusActive     AccountStatus = "active"
	StatusRejected   AccountStatus = "rejected"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusIncomplete, StatusPending, StatusActive, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo encodes the lifecycle table. Active and rejected are
// terminal; there is no reopening path out of rejected.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	switch s {
	case StatusIncomplete:
		return next == StatusPending || next == StatusActive
	case StatusPending:
		return next == StatusActive || next == StatusRejected
	}
	return false
}

// Role is the authorization tier of an account.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Selectable reports whether r may be chosen during role selection.
// Superadmin is never self-assigned.
func (r Role) Selectable() bool {
	return r == RoleUser || r == RoleAdmin
}

// AuthProvider identifies which credential types an account can use.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
	// ProviderHybrid means both a password and a Google identity are usable.
	ProviderHybrid AuthProvider = "hybrid"
)

type User struct {
	ID           string
	Name         string
	Email        string  // stored lowercase, globally unique
	UserID       *string // login handle, unique when set; nil for unfinished Google accounts
	PasswordHash *string // nil means password login unavailable
	AuthProvider AuthProvider
	Status       AccountStatus
	Role         *Role // nil until role selection for incomplete accounts
	IsSuperAdmin bool
	Company      *string // tenant key; nil for superadmins and tenant-less accounts
	ExternalID   *string // Google subject id

	// Password reset scratch state; all nil or all set together.
	ResetCodeHash    *string
	ResetCodeExpiry  *time.Time
	ResetAttempts    int
	LastResetAttempt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserUpdate describes a partial update applied by the credential
// store. Nil fields are left untouched. A non-nil Password is plaintext
// and is hashed by the store before persisting.
type UserUpdate struct {
	Name             *string
	UserID           *string
	Password         *string
	AuthProvider     *AuthProvider
	Status           *AccountStatus
	Role             *Role
	Company          *string
	ExternalID       *string
	ResetCodeHash    *string
	ResetCodeExpiry  *time.Time
	ResetAttempts    *int
	LastResetAttempt *time.Time
	// ClearResetState nulls all reset scratch fields together.
	ClearResetState bool
}

// HasPassword reports whether password login is available.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// RoleIs reports whether the user has the given role.
func (u *User) RoleIs(r Role) bool {
	return u.Role != nil && *u.Role == r
}

// CompanyKey returns the tenant key or "" for tenant-less accounts.
func (u *User) CompanyKey() string {
	if u.Company == nil {
		return ""
	}
	return *u.Company
}

package entity

import (
	"database/sql"
	"time"
)

type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// AuthMethod records how a user authenticates. Pending users were created by
// invitation and have not completed signup yet.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "None"
	AuthMethodPending   AuthMethod = "Pending"
	AuthMethodEmail     AuthMethod = "Email"
	AuthMethodGoogle    AuthMethod = "Google"
	AuthMethodMicrosoft AuthMethod = "Microsoft"
)

type User struct {
	ID                string
	Email             string
	Role              Role
	AuthMethod        AuthMethod
	PasswordEncrypted sql.NullString
	PasswordSalt      sql.NullString
	OrganizationID    sql.NullString
	CreatedByID       string
	UpdatedByID       string
	CreatedDate       time.Time
	UpdatedDate       time.Time
	IsDeleted         bool
}

func (u *User) IsPending() bool {
	return u.AuthMethod == AuthMethodPending
}

// RefreshToken vouches for exactly one access-token id at a time. Rotation
// swaps AccessTokenID in place; ExpiresAt never moves.
type RefreshToken struct {
	ID            string
	UserID        string
	AccessTokenID string
	ExpiresAt     time.Time
	CreatedByID   string
	UpdatedByID   string
	CreatedDate   time.Time
	UpdatedDate   time.Time
	IsDeleted     bool
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles carried in access tokens.
const (
	RoleStudent = "STUDENT"
	RoleStaff   = "STAFF"
)

// User represents an application user record as stored in the `users`
// table.  Managed (child) accounts point at their manager through
// ManagerID; the manager may book on their behalf.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – STUDENT or STAFF.
//  DateOfBirth  – used for age-restricted event types (nullable).
//  ManagerID    – managing user for child accounts (nullable).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64     // users.id
	Email        string     // users.email
	PasswordHash string     // users.password_hash
	Role         string     // users.role
	DateOfBirth  *time.Time // users.date_of_birth (nullable)
	ManagerID    *uint64    // users.manager_id (nullable)
	IsActive     bool       // users.is_active
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// OnlineDisclaimer is a user's signature of one disclaimer version.
type OnlineDisclaimer struct {
	ID          uint64          // online_disclaimers.id
	UserID      uint64          // online_disclaimers.user_id
	Version     decimal.Decimal // online_disclaimers.version
	Date        time.Time       // online_disclaimers.date
	DateUpdated *time.Time      // online_disclaimers.date_updated (nullable)
}

// SignedAt returns the instant the signature was last renewed.
func (d OnlineDisclaimer) SignedAt() time.Time {
	if d.DateUpdated != nil {
		return *d.DateUpdated
	}
	return d.Date
}

// DisclaimerContentRow is the persisted form of a disclaimer version; the
// disclaimer package converts it into its Draft or Published value.
type DisclaimerContentRow struct {
	Version   decimal.Decimal // disclaimer_contents.version
	Content   string          // disclaimer_contents.disclaimer_terms
	IsDraft   bool            // disclaimer_contents.is_draft
	IssueDate time.Time       // disclaimer_contents.issue_date
}

// ActivityLog is a free-text audit entry.
type ActivityLog struct {
	ID        uint64    // activity_logs.id
	Log       string    // activity_logs.log
	CreatedAt time.Time // activity_logs.timestamp
}

package domain

import (
	"strings"
	"time"
)

// Role distinguishes dashboard users from platform administrators.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// DeletedEmailPrefix marks the email of a deleted account. The row is kept
// for billing and audit history; rewriting the address frees it for reuse.
const DeletedEmailPrefix = "deleted+"

// User is the domain model for dashboard accounts.
type User struct {
	ID                string
	FirstName         string
	LastName          string
	Email             string
	PasswordHash      string
	Role              Role
	BillingCustomerID *string
	Deleted           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullName joins first and last name for display and billing records.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DeletedEmail returns the rewritten address used when an account is deleted.
func DeletedEmail(email string) string {
	if strings.HasPrefix(email, DeletedEmailPrefix) {
		return email
	}
	return DeletedEmailPrefix + email
}

// Package authz is the per-operation rule evaluator. Every rule is a pure
// function over claims a verified token already carries; nothing here
// touches the store.
package authz

import (
	"fmt"

	"studioline/internal/domain"
	"studioline/internal/token"
)

// ForbiddenError indicates a valid token with insufficient rights.
type ForbiddenError struct {
	Rule string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Rule)
}

func IsStaff(c token.Claims) bool {
	return c.Kind == domain.KindStaff
}

func IsAdmin(c token.Claims) bool {
	return c.Kind == domain.KindStaff && c.Role == domain.RoleAdmin
}

// StaffOnly gates operations reserved for internal staff of any role.
func StaffOnly(c token.Claims) error {
	if IsStaff(c) {
		return nil
	}
	return ForbiddenError{Rule: "staff only"}
}

// AdminOnly gates staff provisioning and principal administration.
func AdminOnly(c token.Claims) error {
	if IsAdmin(c) {
		return nil
	}
	return ForbiddenError{Rule: "admin only"}
}

// SelfOrAdmin allows a principal to act on its own record, or admin staff
// to act on anyone's.
func SelfOrAdmin(c token.Claims, ownerID string) error {
	if c.PrincipalID == ownerID || IsAdmin(c) {
		return nil
	}
	return ForbiddenError{Rule: "self or admin"}
}

// RequestVisible scopes service-request reads: staff see everything,
// customers only their own requests.
func RequestVisible(c token.Claims, requestedBy string) error {
	if IsStaff(c) {
		return nil
	}
	if c.Kind == domain.KindCustomer && c.PrincipalID == requestedBy {
		return nil
	}
	return ForbiddenError{Rule: "request owner or staff"}
}

// CanAssign gates mutations of a request's assigned set.
func CanAssign(c token.Claims) error {
	if IsStaff(c) {
		return nil
	}
	return ForbiddenError{Rule: "only staff may assign"}
}

// CanReviewTask gates customer approval/rejection. The review is the owning
// customer's act; staff (admins included) may not perform it on their behalf.
func CanReviewTask(c token.Claims, requestOwnerID string) error {
	if c.Kind == domain.KindCustomer && c.PrincipalID == requestOwnerID {
		return nil
	}
	return ForbiddenError{Rule: "owning customer only"}
}

// TaskVisible scopes task reads: staff see everything, the owning customer
// sees tasks under its own requests.
func TaskVisible(c token.Claims, requestOwnerID, assigneeID string) error {
	if IsStaff(c) {
		return nil
	}
	if c.Kind == domain.KindCustomer && c.PrincipalID == requestOwnerID {
		return nil
	}
	return ForbiddenError{Rule: "task owner or staff"}
}

// CanWorkTask gates assignee-driven task mutations (status moves, notes,
// deliverables). Admins may intervene on any task.
func CanWorkTask(c token.Claims, assigneeID string) error {
	if IsAdmin(c) {
		return nil
	}
	if IsStaff(c) && c.PrincipalID == assigneeID {
		return nil
	}
	return ForbiddenError{Rule: "assignee or admin"}
}

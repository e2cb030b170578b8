package services

import "dormsync-backend-go/internal/models"

// RoleSet is an explicit allow-set. Roles never imply one another, every
// permitted role must be listed.
type RoleSet []models.Role

var (
	AdministrativeRoles = RoleSet{models.RoleSuperAdmin, models.RoleManager, models.RoleAdmin}
	AccountAdminRoles   = RoleSet{models.RoleAdmin, models.RoleSuperAdmin}
	ResidentAdminRoles  = RoleSet{models.RoleAdmin, models.RoleSuperAdmin, models.RoleManager}
	AttendanceRoles     = RoleSet{models.RoleAdmin, models.RoleSuperAdmin, models.RoleStaff}
	AttendanceReadRoles = RoleSet{models.RoleAdmin, models.RoleSuperAdmin, models.RoleManager, models.RoleStaff}
	DashboardAdminRoles = RoleSet{models.RoleAdmin, models.RoleSuperAdmin, models.RoleManager, models.RoleStaff}
	StudentRoles        = RoleSet{models.RoleStudent}
	PaymentEditorRoles  = RoleSet{models.RoleAdmin, models.RoleSuperAdmin, models.RoleManager, models.RoleStudent}
)

func (s RoleSet) Contains(role models.Role) bool {
	for _, allowed := range s {
		if allowed == role {
			return true
		}
	}
	return false
}

func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, role := range s {
		out = append(out, string(role))
	}
	return out
}

// Principal is the authenticated account behind a request.
type Principal struct {
	ID    string
	Email string
	Role  models.Role
}

func PrincipalOf(account models.Account) Principal {
	return Principal{ID: account.ID, Email: account.Email, Role: account.Role}
}

func (p Principal) IsStudent() bool {
	return p.Role == models.RoleStudent
}

// Allowed permits iff role is a member of allowSet.
func Allowed(role models.Role, allowSet RoleSet) bool {
	return allowSet.Contains(role)
}

// OwnsResource is layered on top of Allowed for self-scoped resources.
func OwnsResource(p Principal, ownerID string) bool {
	return p.ID != "" && p.ID == ownerID
}

// Authorize checks the role, then ownership when ownerID is non-empty and the
// principal is not in bypass.
func Authorize(p Principal, allowSet RoleSet, ownerID string, bypass RoleSet) error {
	if !Allowed(p.Role, allowSet) {
		return ErrForbidden("Not allowed")
	}
	if ownerID != "" && !bypass.Contains(p.Role) && !OwnsResource(p, ownerID) {
		return ErrForbidden("Not allowed")
	}
	return nil
}

// CanSignIn is the single "is usable" predicate: administrative roles always
// pass, everyone else needs an approved or active account.
func CanSignIn(account models.Account) error {
	if account.Role.IsAdministrative() {
		return nil
	}
	switch account.Status {
	case models.StatusApproved, models.StatusActive:
		return nil
	case models.StatusPending:
		return ErrAccountPending()
	case models.StatusRejected:
		return ErrAccountRejected()
	default:
		return ErrAccountUnverified()
	}
}

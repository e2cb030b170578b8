package services

import (
	"fmt"

	"dormsync-backend-go/internal/models"
)

// statusTransitions lists the legal account status moves. Moving to the
// current status is always a no-op.
var statusTransitions = map[models.AccountStatus][]models.AccountStatus{
	models.StatusUnverified: {models.StatusActive, models.StatusApproved, models.StatusRejected},
	models.StatusPending:    {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:   {models.StatusActive, models.StatusPending, models.StatusRejected},
	models.StatusActive:     {models.StatusApproved, models.StatusPending, models.StatusRejected},
	models.StatusRejected:   {models.StatusApproved, models.StatusPending},
}

func CanTransition(from, to models.AccountStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transitionStatus moves the account to target or fails with IllegalTransition.
func transitionStatus(account *models.Account, target models.AccountStatus) error {
	if !CanTransition(account.Status, target) {
		return ErrIllegalTransition(fmt.Sprintf("Cannot move account from %s to %s", account.Status, target))
	}
	account.Status = target
	return nil
}

// DeriveAccountStatus mirrors an admin edit of the profile status onto the
// account: active forces approved, inactive forces pending, anything else
// keeps the current status.
func DeriveAccountStatus(profile models.ProfileStatus, current models.AccountStatus) models.AccountStatus {
	switch profile {
	case models.ProfileActive:
		return models.StatusApproved
	case models.ProfileInactive:
		return models.StatusPending
	default:
		return current
	}
}

// ensureProfileStatus creates the embedded profile for students when missing
// and forces its status.
func ensureProfileStatus(account *models.Account, status models.ProfileStatus) {
	if account.Role != models.RoleStudent {
		return
	}
	if account.StudentProfile == nil {
		account.StudentProfile = &models.StudentProfile{}
	}
	account.StudentProfile.Status = status
}

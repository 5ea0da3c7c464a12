package app

import "quantum-dashboard/internal/model"

// Actor is the authenticated caller, taken from verified token claims.
type Actor struct {
	UserID   uint
	Username string
	Role     model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// scope limits listings to the caller's own rows unless the caller is an admin.
func (a Actor) scope() uint {
	if a.IsAdmin() {
		return 0
	}
	return a.UserID
}

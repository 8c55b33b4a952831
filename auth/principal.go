package auth

import "canteen-api/models"

// Principal is the caller identity resolved once per request and passed
// explicitly to every service call that needs it.
type Principal struct {
	UserID uint
	Role   models.UserRole
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// Owns reports whether the principal is the given user.
func (p *Principal) Owns(userID uint) bool {
	return p != nil && p.UserID == userID
}

package auth

import "github.com/google/uuid"

const adminRole = "admin"

// Session is the resolved principal for one request. Role carries the
// primary role claim; Roles carries an optional multi-role claim. Both
// shapes occur in the wild, so admin checks must accept either.
type Session struct {
	UserID uuid.UUID
	Email  string
	Role   string
	Roles  []string
}

// IsAdmin reports whether the session carries the admin role, either as
// the primary role or inside the roles collection. A nil session is
// never admin. Pure function of session state; no store access.
func (s *Session) IsAdmin() bool {
	if s == nil {
		return false
	}
	if s.Role == adminRole {
		return true
	}
	for _, r := range s.Roles {
		if r == adminRole {
			return true
		}
	}
	return false
}

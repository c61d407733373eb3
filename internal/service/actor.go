package service

import "sparkclean/internal/models"

// Actor is the caller of a service operation.
type Actor struct {
	UserID int64
	Email  string
	Role   string
}

func ActorFromSession(s *models.Session) Actor {
	if s == nil {
		return Actor{}
	}
	return Actor{UserID: s.UserID, Email: s.Email, Role: s.Role}
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// Owns reports whether the actor may act on a row owned by userID.
func (a Actor) Owns(userID int64) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == userID)
}

func (a Actor) requireAdmin() error {
	if !a.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (a Actor) requireUser() error {
	if a.UserID == 0 {
		return ErrUnauthorized
	}
	return nil
}

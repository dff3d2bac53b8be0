package services

import (
	"github.com/homeserve/marketplace-backend/internal/models"
)

// Actor is the authenticated caller of a service operation, taken from the
// request's access token
type Actor struct {
	UserID int64
	Role   models.UserRole
	// ProviderID is the caller's provider profile; 0 for other roles or when
	// the token predates the profile
	ProviderID int64
}

func (a Actor) is(role models.UserRole) bool { return a.Role == role }

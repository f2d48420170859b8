package session

import (
	"context"
	"errors"
)

// Role is what a resolved session is allowed to act as.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// Identity is the (user, role) pair a session token resolves to.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

var ErrUnauthenticated = errors.New("unauthenticated")

// Gate resolves opaque session tokens. Callers never see credentials.
type Gate interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/meujardineiro/backend/internal/session"
)

// ActiveGate resolves tokens through Gate and then refuses accounts that
// were suspended or removed after the token was issued.
type ActiveGate struct {
	Gate  session.Gate
	Store Store
}

func (g ActiveGate) Resolve(ctx context.Context, token string) (session.Identity, error) {
	id, err := g.Gate.Resolve(ctx, token)
	if err != nil {
		return session.Identity{}, err
	}
	u, err := g.Store.Get(ctx, id.UserID)
	if errors.Is(err, ErrNotFound) {
		return session.Identity{}, session.ErrUnauthenticated
	}
	if err != nil {
		return session.Identity{}, fmt.Errorf("load session user: %w", err)
	}
	if !u.Active {
		return session.Identity{}, session.ErrUnauthenticated
	}
	return id, nil
}

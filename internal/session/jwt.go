package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by every session token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and resolves HS256 session tokens and honours revocations.
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, revoked RevocationStore) *Issuer {
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

// Issue returns a signed token for id.
func (i *Issuer) Issue(id Identity) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID: id.UserID,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (i *Issuer) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthenticated
	}
	if claims.UserID == "" || !claims.Role.Valid() || claims.ID == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Resolve implements Gate.
func (i *Issuer) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := i.parse(token)
	if err != nil {
		return Identity{}, err
	}
	revoked, err := i.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// Revoke invalidates token until its natural expiry.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	claims, err := i.parse(token)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(i.now())
	if ttl <= 0 {
		return nil
	}
	return i.revoked.Revoke(ctx, claims.ID, ttl)
}

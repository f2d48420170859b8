package auth

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/user"
)

// Mailer is the slice of the alerts dispatcher auth uses.
type Mailer interface {
	WelcomeEmail(ctx context.Context, userID, email, name string) error
	PasswordReset(ctx context.Context, userID, email, name, token string, ttl time.Duration) error
}

type Options struct {
	// ResetSecret signs password reset tokens.
	ResetSecret string
	ResetTTL    time.Duration
	// BootstrapSecret enables BootstrapAdmin when non-empty.
	BootstrapSecret string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Handler is the built-in identity provider: accounts, passwords and
// session tokens.
type Handler struct {
	users  user.Store
	issuer *session.Issuer
	mail   Mailer
	opts   Options
	log    *zap.Logger
}

func NewHandler(users user.Store, issuer *session.Issuer, mail Mailer, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 30 * time.Minute
	}
	return &Handler{users: users, issuer: issuer, mail: mail, opts: opts, log: log}
}

// Register mounts the auth routes. authed must resolve the session.
func (h *Handler) Register(g *echo.Group, authed echo.MiddlewareFunc) {
	g.POST("/signup/customer", h.SignupCustomer)
	g.POST("/signup/provider", h.SignupProvider)
	g.POST("/login", h.Login)
	g.POST("/password/request", h.RequestPasswordReset)
	g.POST("/password/reset", h.ResetPassword)
	g.POST("/bootstrap-admin", h.BootstrapAdmin)
	g.POST("/logout", h.Logout, authed)
	g.GET("/me", h.Me, authed)
}

type TokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *user.User `json:"user"`
}

func (h *Handler) tokenFor(u *user.User) (TokenResponse, error) {
	token, exp, err := h.issuer.Issue(session.Identity{UserID: u.ID, Role: u.Role})
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

func bindAndValidate(c echo.Context, req any) (string, bool) {
	if err := c.Bind(req); err != nil {
		return "invalid request", false
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return err.Error(), false
		}
	}
	return "", true
}

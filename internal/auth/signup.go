package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/user"
	"github.com/meujardineiro/backend/internal/utils"
)

type SignupCustomerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"max=30"`
	Address  string `json:"address" validate:"max=300"`
}

type SignupProviderRequest struct {
	Name            string                    `json:"name" validate:"required,min=2,max=120"`
	Email           string                    `json:"email" validate:"required,email"`
	Password        string                    `json:"password" validate:"required"`
	Phone           string                    `json:"phone" validate:"required,max=30"`
	Address         string                    `json:"address" validate:"max=300"`
	CPFCNPJ         string                    `json:"cpf_cnpj" validate:"required"`
	CompanyName     string                    `json:"company_name" validate:"max=120"`
	Specialties     []marketplace.ServiceType `json:"specialties"`
	Availability    string                    `json:"availability" validate:"max=300"`
	ServiceRadiusKm float64                   `json:"service_radius_km" validate:"gte=0,lte=500"`
	Latitude        *float64                  `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64                  `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// checkCredentials applies the email and password rules shared by both
// signups and returns the normalized email.
func checkCredentials(email, password string) (string, string) {
	email = utils.NormalizeEmail(email)
	if !utils.ValidEmail(email) {
		return "", "invalid email"
	}
	if problems := utils.PasswordProblems(password); len(problems) > 0 {
		return "", strings.Join(problems, "; ")
	}
	return email, ""
}

// ===== Signup =====
func (h *Handler) SignupCustomer(c echo.Context) error {
	req := new(SignupCustomerRequest)
	if msg, ok := bindAndValidate(c, req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	email, msg := checkCredentials(req.Email, req.Password)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	u := &user.User{
		Role:    session.RoleCustomer,
		Name:    strings.TrimSpace(req.Name),
		Email:   email,
		Phone:   req.Phone,
		Address: req.Address,
		Active:  true,
	}
	return h.signup(c, u, req.Password)
}

func (h *Handler) SignupProvider(c echo.Context) error {
	req := new(SignupProviderRequest)
	if msg, ok := bindAndValidate(c, req); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	email, msg := checkCredentials(req.Email, req.Password)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if !utils.ValidDocument(req.CPFCNPJ) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cpf/cnpj"})
	}
	for _, s := range req.Specialties {
		if !s.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown specialty " + string(s)})
		}
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "latitude and longitude must be given together"})
	}

	u := &user.User{
		Role:            session.RoleProvider,
		Name:            strings.TrimSpace(req.Name),
		Email:           email,
		Phone:           req.Phone,
		Address:         req.Address,
		Active:          true,
		CPFCNPJ:         utils.Digits(req.CPFCNPJ),
		CompanyName:     req.CompanyName,
		Specialties:     req.Specialties,
		Availability:    req.Availability,
		ServiceRadiusKm: req.ServiceRadiusKm,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
	}
	return h.signup(c, u, req.Password)
}

func (h *Handler) signup(c echo.Context, u *user.User, password string) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx, h.log)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.opts.BcryptCost)
	if err != nil {
		log.Error("hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	u.PasswordHash = string(hashed)

	if err := h.users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken), errors.Is(err, user.ErrDocumentTaken):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		log.Error("create user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create account"})
	}

	if h.mail != nil {
		if err := h.mail.WelcomeEmail(ctx, u.ID, u.Email, u.Name); err != nil {
			log.Warn("enqueue welcome email", zap.String("user_id", u.ID), zap.Error(err))
		}
	}

	resp, err := h.tokenFor(u)
	if err != nil {
		log.Error("issue token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

package utils

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

var ErrMissingToken = errors.New("missing authorization header")

// BearerToken pulls the raw session token from the Authorization header.
func BearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(token), nil
}

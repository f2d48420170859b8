package utils

import (
	"github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	v *validator.Validate
}

func NewValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *RequestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

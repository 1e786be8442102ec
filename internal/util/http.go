package util

import (
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// BindAndValidateBody binds the JSON request body into v. Types
// implementing Validate get their own checks run after binding.
func BindAndValidateBody(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to bind request body").SetInternal(err)
	}

	if validator, ok := v.(interface{ Validate() error }); ok {
		if err := validator.Validate(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		}
	}

	return nil
}

// ValidateAndReturn writes the response payload with the given status.
func ValidateAndReturn(c echo.Context, code int, v interface{}) error {
	return c.JSON(code, v)
}

// ParseAmount parses a positive decimal string into a big integer.
func ParseAmount(v string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, errors.Errorf("invalid decimal amount %q", v)
	}
	if amount.Sign() <= 0 {
		return nil, errors.Errorf("amount %q must be positive", v)
	}

	return amount, nil
}

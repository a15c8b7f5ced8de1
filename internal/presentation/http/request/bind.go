package request

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

// Bind decodes the request body into dst and validates its struct tags.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if err := c.Validate(dst); err != nil {
		return errorbank.From(err)
	}
	return nil
}

// ParamID parses a positive integer path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail("param", name))
	}
	return id, nil
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/aibutler/butler-api/internal/api/middleware"
	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

// callerIdentity returns the identity injected by the Auth middleware. Its
// absence means the route was mounted without the gate, which is reported as 401.
func callerIdentity(c echo.Context) (domain.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return identity, nil
}

// bindAndValidate decodes the request into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return id, nil
}

type pageQuery struct {
	Offset int `query:"offset" validate:"gte=0"`
	Limit  int `query:"limit"  validate:"gte=0,lte=100"`
}

func (q pageQuery) page() ports.Page {
	return ports.Page{Offset: q.Offset, Limit: q.Limit}
}

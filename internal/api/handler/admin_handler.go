package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aibutler/butler-api/internal/api/metrics"
	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

// AdminHandler serves the user administration routes. Every route is behind the admin gate.
type AdminHandler struct {
	authService ports.AuthService
	metrics     *metrics.Metrics
}

func NewAdminHandler(authService ports.AuthService, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{authService: authService, metrics: m}
}

type adminCreateUserRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

type updateRoleRequest struct {
	NewRole string `json:"new_role" form:"new_role" validate:"required,oneof=user admin"`
}

// CreateUser creates an account with any role.
//
// @Summary      Create a user (admin)
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      adminCreateUserRequest  true  "User details"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /admin/users [post]
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req adminCreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.CreateUser(c.Request().Context(), ports.AdminCreateUserInput{
		Username: req.Username,
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	h.metrics.UserRegistered("admin")
	return c.JSON(http.StatusCreated, user)
}

// ListUsers returns registered accounts in creation order.
//
// @Summary      List users (admin)
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        offset  query     int  false  "Rows to skip"
// @Param        limit   query     int  false  "Max rows (default 20, max 100)"
// @Success      200     {array}   domain.User
// @Failure      401     {object}  map[string]string
// @Failure      403     {object}  map[string]string
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	var q pageQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	users, err := h.authService.ListUsers(c.Request().Context(), q.page())
	if err != nil {
		return err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateRole promotes or demotes an existing user.
//
// @Summary      Change a user's role (admin)
// @Tags         admin
// @Accept       x-www-form-urlencoded,json
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      int     true  "User ID"
// @Param        new_role  formData  string  true  "user or admin"
// @Success      200  {object}  domain.User
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/role [patch]
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req updateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdateRole(c.Request().Context(), id, req.NewRole)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

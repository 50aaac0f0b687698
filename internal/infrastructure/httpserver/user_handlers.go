package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/passlink/reset-service/internal/core/domain/user"
)

// User handlers
func (s *Server) createUser(c echo.Context) error {
	var req user.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	createdUser, err := s.userService.CreateUser(c.Request().Context(), &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to create user")
	}

	return c.JSON(http.StatusCreated, createdUser)
}

package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/passlink/reset-service/internal/core/domain/reset"
)

// Password reset handlers. Responses carry only stable generic messages;
// token values and internal identifiers never appear in a response body.

func (s *Server) forgotPassword(c echo.Context) error {
	var req reset.RequestResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	err := s.resetService.RequestReset(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, reset.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user does not exist in our database")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "an error occurred, please try again later")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "password reset link has been sent to your email",
	})
}

func (s *Server) verifyResetToken(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}

	err := s.resetService.VerifyToken(c.Request().Context(), token)
	if err != nil {
		if errors.Is(err, reset.ErrInvalidOrExpiredToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired password reset link")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "an error occurred, please try again later")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "link is valid",
	})
}

func (s *Server) resetPassword(c echo.Context) error {
	var req reset.CompleteResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := s.resetService.CompleteReset(c.Request().Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, reset.ErrPasswordMismatch), errors.Is(err, reset.ErrWeakPassword):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, reset.ErrInvalidOrExpiredToken):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "an error occurred, please try again later")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "your password has been successfully reset",
	})
}

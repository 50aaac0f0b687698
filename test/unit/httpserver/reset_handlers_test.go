package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/passlink/reset-service/internal/core/domain/reset"
	reset_http "github.com/passlink/reset-service/internal/infrastructure/httpserver"
	"github.com/passlink/reset-service/test/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestServer(resetMock *mocks.ResetServiceMock, userMock *mocks.UserServiceMock) *httptest.Server {
	deps := reset_http.ServerDeps{
		ResetService:   resetMock,
		UserService:    userMock,
		HealthCheckers: nil,
	}
	srv := reset_http.NewServer(&reset_http.ServerConfig{
		Host:         "127.0.0.1",
		Port:         "0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}, logrus.New(), deps)

	return httptest.NewServer(srv.Echo())
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var b []byte
	if body != nil {
		var err error
		b, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	parsed := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}
	return resp, parsed
}

func TestForgotPasswordEndpoint(t *testing.T) {
	resetMock := &mocks.ResetServiceMock{}
	var requestedEmail string
	resetMock.RequestResetFn = func(ctx context.Context, email string) error {
		requestedEmail = email
		switch email {
		case "known@example.com":
			return nil
		case "nobody@example.com":
			return reset.ErrUserNotFound
		default:
			return context.DeadlineExceeded
		}
	}

	ts := newTestServer(resetMock, &mocks.UserServiceMock{})
	defer ts.Close()

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "known@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "known@example.com", requestedEmail)
	require.Contains(t, body["message"], "reset link")

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "boom@example.com"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyResetTokenEndpoint(t *testing.T) {
	resetMock := &mocks.ResetServiceMock{}
	resetMock.VerifyTokenFn = func(ctx context.Context, token string) error {
		if token == "good-token" {
			return nil
		}
		return reset.ErrInvalidOrExpiredToken
	}

	ts := newTestServer(resetMock, &mocks.UserServiceMock{})
	defer ts.Close()

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/auth/reset-password/good-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "link is valid", body["message"])

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/auth/reset-password/bad-token", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetPasswordEndpoint(t *testing.T) {
	resetMock := &mocks.ResetServiceMock{}
	resetMock.CompleteResetFn = func(ctx context.Context, req *reset.CompleteResetRequest) error {
		if err := req.Validate(); err != nil {
			return err
		}
		if req.Token != "good-token" {
			return reset.ErrInvalidOrExpiredToken
		}
		return nil
	}

	ts := newTestServer(resetMock, &mocks.UserServiceMock{})
	defer ts.Close()

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token": "good-token", "new_password": "newpass1", "confirm_password": "newpass1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body["message"], "successfully reset")

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token": "stale-token", "new_password": "newpass1", "confirm_password": "newpass1",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token": "good-token", "new_password": "newpass1", "confirm_password": "other",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token": "good-token", "new_password": "tiny", "confirm_password": "tiny",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateUserEndpoint(t *testing.T) {
	ts := newTestServer(&mocks.ResetServiceMock{}, &mocks.UserServiceMock{})
	defer ts.Close()

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/users", map[string]string{
		"email": "new@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "new@example.com", body["email"])

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/users", map[string]string{"email": "new@example.com"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/garage/internal/auth"
	"github.com/ukydev/garage/internal/db"
	"github.com/ukydev/garage/internal/garage"
	"github.com/ukydev/garage/internal/middleware"
	"github.com/ukydev/garage/internal/models"
)

func newSecuredMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger, _ := logtest.NewNullLogger()

	var operators []models.Operator
	for username, role := range map[string]models.Role{"olga": models.RoleOwner, "mel": models.RoleMechanic, "vic": models.RoleViewer} {
		hash, err := auth.HashPassword(username + "-password")
		require.NoError(t, err)
		operators = append(operators, models.Operator{Username: username, PasswordHash: hash, Role: role})
	}
	service, err := auth.NewService("handler-secret", time.Hour, operators)
	require.NoError(t, err)

	g := garage.New(db.NewMemoryStore(), models.NewRegistry(), garage.WithLogger(logger))
	mux := http.NewServeMux()
	Register(mux, NewGarageHandler(g, logger), NewAuthHandler(service, logger), middleware.NewAuthMiddleware(service))
	return mux
}

func login(t *testing.T, mux *http.ServeMux, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(models.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, mux *http.ServeMux, username string) string {
	t.Helper()
	w := login(t, mux, username, username+"-password")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestAuthHandler_Login(t *testing.T) {
	mux := newSecuredMux(t)

	t.Run("successful login", func(t *testing.T) {
		w := login(t, mux, "mel", "mel-password")
		assert.Equal(t, http.StatusOK, w.Code)

		var response models.LoginResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "mel", response.Operator.Username)
		assert.Equal(t, models.RoleMechanic, response.Operator.Role)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("wrong password", func(t *testing.T) {
		w := login(t, mux, "mel", "nope")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown operator", func(t *testing.T) {
		w := login(t, mux, "bob", "bob-password")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := login(t, mux, "mel", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString("invalid json"))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/login", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	mux := newSecuredMux(t)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, mux, "olga"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var op models.Operator
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &op))
	assert.Equal(t, "olga", op.Username)
	assert.NotNil(t, op.LastLogin)

	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPermissionsPerRole(t *testing.T) {
	mux := newSecuredMux(t)
	car := `{"type":"Car","id":"car-1","make":"Toyota","model":"Corolla","year":2020,"doors":4}`

	tests := []struct {
		name     string
		username string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{"viewer cannot add", "vic", "POST", "/api/vehicles", car, http.StatusForbidden},
		{"mechanic cannot add", "mel", "POST", "/api/vehicles", car, http.StatusForbidden},
		{"owner adds", "olga", "POST", "/api/vehicles", car, http.StatusCreated},
		{"viewer lists", "vic", "GET", "/api/vehicles", "", http.StatusOK},
		{"viewer cannot drive", "vic", "POST", "/api/vehicles/car-1/start", "", http.StatusForbidden},
		{"mechanic drives", "mel", "POST", "/api/vehicles/car-1/start", "", http.StatusOK},
		{"mechanic logs service", "mel", "POST", "/api/vehicles/car-1/maintenance", `{"date":"2024-01-01","type":"Oil change","cost":80}`, http.StatusCreated},
		{"viewer cannot log service", "vic", "POST", "/api/vehicles/car-1/maintenance", `{"date":"2024-01-01","type":"Oil change","cost":80}`, http.StatusForbidden},
		{"mechanic cannot remove", "mel", "DELETE", "/api/vehicles/car-1", "", http.StatusForbidden},
		{"owner removes", "olga", "DELETE", "/api/vehicles/car-1", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, mux, tt.username))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/vehicles", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLogin_AuthDisabled(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString(`{"username":"a","password":"b"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/infrastructure/auth"
	"github.com/shopdesk/backend/internal/infrastructure/config"
	"github.com/shopdesk/backend/internal/infrastructure/logger"
	"github.com/shopdesk/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWTConfig = config.JWTConfig{
	Secret: "test-secret-key-with-enough-length",
	Issuer: "shopdesk-identity",
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[jti], nil
}

type seenIdentity struct {
	tenantID  uuid.UUID
	hasTenant bool
	userID    uuid.UUID
	claims    *auth.Claims
	logTenant string
}

func authRouter(cfg AuthConfig, seen *seenIdentity) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Auth(cfg))
	handler := func(c *gin.Context) {
		seen.tenantID, seen.hasTenant = GetTenantID(c)
		seen.userID = GetUserID(c)
		seen.claims = GetJWTClaims(c)
		seen.logTenant = logger.GetTenantID(c.Request.Context())
		c.Status(http.StatusOK)
	}
	router.GET("/api/v1/invoices", handler)
	router.GET("/health", handler)
	return router
}

func signToken(t *testing.T, tenantID, userID uuid.UUID, now time.Time) string {
	t.Helper()
	token, err := auth.SignAccessToken(testJWTConfig, tenantID, userID, time.Hour, now)
	require.NoError(t, err)
	return token
}

func TestAuth_ValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenantID, userID := uuid.New(), uuid.New()

	var seen seenIdentity
	router := authRouter(DefaultAuthConfig(auth.NewTokenValidator(testJWTConfig)), &seen)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+signToken(t, tenantID, userID, time.Now()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, seen.hasTenant)
	assert.Equal(t, tenantID, seen.tenantID)
	assert.Equal(t, userID, seen.userID)
	require.NotNil(t, seen.claims)
	assert.NotEmpty(t, seen.claims.ID)
	assert.Equal(t, tenantID.String(), seen.logTenant)
}

func TestAuth_Rejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenantID, userID := uuid.New(), uuid.New()

	otherIssuer := config.JWTConfig{Secret: testJWTConfig.Secret, Issuer: "someone-else"}
	foreign, err := auth.SignAccessToken(otherIssuer, tenantID, userID, time.Hour, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{name: "missing header", header: "", code: dto.ErrCodeTokenInvalid},
		{name: "not a bearer token", header: "Basic abc", code: dto.ErrCodeTokenInvalid},
		{name: "empty bearer", header: BearerPrefix, code: dto.ErrCodeTokenInvalid},
		{name: "garbage token", header: BearerPrefix + "not.a.jwt", code: dto.ErrCodeTokenInvalid},
		{name: "wrong issuer", header: BearerPrefix + foreign, code: dto.ErrCodeTokenInvalid},
		{
			name:   "expired",
			header: BearerPrefix + signToken(t, tenantID, userID, time.Now().Add(-3*time.Hour)),
			code:   dto.ErrCodeTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen seenIdentity
			router := authRouter(DefaultAuthConfig(auth.NewTokenValidator(testJWTConfig)), &seen)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			assert.False(t, seen.hasTenant)
		})
	}
}

func TestAuth_Revocation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenantID, userID := uuid.New(), uuid.New()
	validator := auth.NewTokenValidator(testJWTConfig)

	token := signToken(t, tenantID, userID, time.Now())
	claims, err := validator.ValidateAccessToken(token)
	require.NoError(t, err)

	t.Run("revoked token is rejected", func(t *testing.T) {
		cfg := DefaultAuthConfig(validator)
		cfg.Revocations = &fakeRevocations{revoked: map[string]bool{claims.ID: true}}

		var seen seenIdentity
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		authRouter(cfg, &seen).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenRevoked, decodeResponse(t, w).Error.Code)
	})

	t.Run("lookup failure lets the request through", func(t *testing.T) {
		cfg := DefaultAuthConfig(validator)
		cfg.Revocations = &fakeRevocations{err: errors.New("redis down")}

		var seen seenIdentity
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		authRouter(cfg, &seen).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, seen.tenantID)
	})
}

func TestAuth_HeaderTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenantID, userID := uuid.New(), uuid.New()

	t.Run("accepted when enabled", func(t *testing.T) {
		cfg := DefaultAuthConfig(auth.NewTokenValidator(testJWTConfig))
		cfg.AllowHeaderTenant = true

		var seen seenIdentity
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		req.Header.Set(UserHeaderKey, userID.String())
		w := httptest.NewRecorder()
		authRouter(cfg, &seen).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, seen.tenantID)
		assert.Equal(t, userID, seen.userID)
		assert.Nil(t, seen.claims)
	})

	t.Run("user header is optional", func(t *testing.T) {
		cfg := DefaultAuthConfig(auth.NewTokenValidator(testJWTConfig))
		cfg.AllowHeaderTenant = true

		var seen seenIdentity
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		authRouter(cfg, &seen).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uuid.Nil, seen.userID)
	})

	t.Run("ignored when disabled", func(t *testing.T) {
		var seen seenIdentity
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		authRouter(DefaultAuthConfig(auth.NewTokenValidator(testJWTConfig)), &seen).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed tenant falls through to token check", func(t *testing.T) {
		cfg := DefaultAuthConfig(auth.NewTokenValidator(testJWTConfig))
		cfg.AllowHeaderTenant = true

		var seen seenIdentity
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set(TenantHeaderKey, "acme")
		w := httptest.NewRecorder()
		authRouter(cfg, &seen).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuth_SkipPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen seenIdentity
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	authRouter(DefaultAuthConfig(auth.NewTokenValidator(testJWTConfig)), &seen).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, seen.hasTenant)
}

func TestGetTenantID_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	id, ok := GetTenantID(c)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
	assert.Equal(t, uuid.Nil, GetUserID(c))
	assert.Nil(t, GetJWTClaims(c))
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/utils"
	"github.com/homeserve/marketplace-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customerSubject = jwt.Subject{UserID: 1, Email: "asha@example.com", Role: "customer"}

func setupTestJWTService() *jwt.Service {
	return jwt.NewService(
		"test-access-secret-key-123456789",
		"test-refresh-secret-key-123456789",
		time.Hour,
		24*time.Hour,
	)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()

	token, err := jwtService.GenerateAccessToken(jwt.Subject{UserID: 50, Email: "ravi@example.com", Role: "provider", ProviderID: 5})
	require.NoError(t, err)

	router.GET("/protected", AuthMiddleware(jwtService, nullLogger()), func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		require.True(t, exists)
		actor := userCtx.Actor()
		c.JSON(http.StatusOK, gin.H{
			"message":     "success",
			"user_id":     actor.UserID,
			"role":        actor.Role,
			"provider_id": actor.ProviderID,
		})
	})

	w := get(router, "/protected", token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"success","user_id":50,"role":"provider","provider_id":5}`, w.Body.String())
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := setupTestJWTService()
	expired := jwt.NewService("test-access-secret-key-123456789", "r", -time.Minute, time.Hour)
	wrongSecret := jwt.NewService("wrong-secret-key", "wrong-refresh-secret", time.Hour, time.Hour)

	expiredToken, err := expired.GenerateAccessToken(customerSubject)
	require.NoError(t, err)
	foreignToken, err := wrongSecret.GenerateAccessToken(customerSubject)
	require.NoError(t, err)
	refreshToken, err := jwtService.GenerateRefreshToken(customerSubject)
	require.NoError(t, err)
	unknownRole, err := jwtService.GenerateAccessToken(jwt.Subject{UserID: 3, Role: "root"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"MissingHeader", "", "MISSING_AUTH_HEADER"},
		{"BasicAuth", "Basic dXNlcjpwYXNz", "INVALID_AUTH_FORMAT"},
		{"NoScheme", "token-without-bearer", "INVALID_AUTH_FORMAT"},
		{"EmptyToken", "Bearer    ", "INVALID_AUTH_FORMAT"},
		{"Garbage", "Bearer not.a.jwt", "INVALID_TOKEN"},
		{"Expired", "Bearer " + expiredToken, "TOKEN_EXPIRED"},
		{"WrongSecret", "Bearer " + foreignToken, "INVALID_TOKEN"},
		{"RefreshTokenAsAccess", "Bearer " + refreshToken, "INVALID_TOKEN"},
		{"UnknownRole", "Bearer " + unknownRole, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/protected", AuthMiddleware(jwtService, nullLogger()), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestGetUserContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Context exists", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		expected := UserContext{UserID: 1, Email: "asha@example.com", Role: models.RoleCustomer}
		c.Set(UserContextKey, expected)

		userCtx, exists := GetUserContext(c)
		assert.True(t, exists)
		assert.Equal(t, expected, userCtx)
	})

	t.Run("Context not found", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		userCtx, exists := GetUserContext(c)
		assert.False(t, exists)
		assert.Equal(t, UserContext{}, userCtx)
	})

	t.Run("Context wrong type", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(UserContextKey, "wrong type")
		_, exists := GetUserContext(c)
		assert.False(t, exists)
	})

	t.Run("MustGet panics without auth", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Panics(t, func() { MustGetUserContext(c) })
	})
}

func TestRequireRole(t *testing.T) {
	jwtService := setupTestJWTService()
	logger := nullLogger()

	customerToken, err := jwtService.GenerateAccessToken(customerSubject)
	require.NoError(t, err)
	adminToken, err := jwtService.GenerateAccessToken(jwt.Subject{UserID: 99, Role: "admin"})
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/admin-only", AuthMiddleware(jwtService, logger), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/multi-role", AuthMiddleware(jwtService, logger), RequireRole(models.RoleAdmin, models.RoleCustomer), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/no-auth", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
	})

	w := get(router, "/admin-only", adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/admin-only", customerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")

	w = get(router, "/multi-role", customerToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/no-auth", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_USER_CONTEXT")
}

type providerLookup map[int64]*models.ProviderWithUser

func (p providerLookup) GetProvider(ctx context.Context, id int64) (*models.ProviderWithUser, error) {
	for _, v := range p {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, database.ErrNotFound
}

func (p providerLookup) GetProviderByUserID(ctx context.Context, userID int64) (*models.ProviderWithUser, error) {
	if v, ok := p[userID]; ok {
		return v, nil
	}
	return nil, database.ErrNotFound
}

func TestRequireVerifiedProvider(t *testing.T) {
	jwtService := setupTestJWTService()
	logger := nullLogger()
	lookup := providerLookup{
		50: {ProviderProfile: models.ProviderProfile{ID: 5, UserID: 50, BackgroundVerified: models.VerificationVerified}},
		70: {ProviderProfile: models.ProviderProfile{ID: 7, UserID: 70, BackgroundVerified: models.VerificationPending}},
	}

	router := setupTestRouter()
	router.GET("/provider", AuthMiddleware(jwtService, logger), RequireVerifiedProvider(lookup, logger), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"provider_id": c.GetInt64(ProviderIDKey)})
	})

	token := func(userID int64) string {
		tok, err := jwtService.GenerateAccessToken(jwt.Subject{UserID: userID, Role: "provider"})
		require.NoError(t, err)
		return tok
	}

	w := get(router, "/provider", token(50))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider_id":5}`, w.Body.String())

	w = get(router, "/provider", token(70))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ACCOUNT_NOT_VERIFIED")

	w = get(router, "/provider", token(404))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_PROVIDER")

	t.Run("Lookup Failure", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/provider", AuthMiddleware(jwtService, logger), RequireVerifiedProvider(failingLookup{}, logger), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := get(router, "/provider", token(50))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

type failingLookup struct{}

func (failingLookup) GetProvider(ctx context.Context, id int64) (*models.ProviderWithUser, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (failingLookup) GetProviderByUserID(ctx context.Context, userID int64) (*models.ProviderWithUser, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestRequestContext(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestContext(), RequestLogger(nullLogger()))
	router.GET("/meta", func(c *gin.Context) {
		meta := utils.RequestMetaFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"request_id": meta.RequestID, "ua": meta.UserAgent})
	})

	req := httptest.NewRequest(http.MethodGet, "/meta", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.JSONEq(t, `{"request_id":"abc-123","ua":"test-agent"}`, w.Body.String())

	w = get(router, "/meta", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{Requests: 1, WindowSeconds: 60, Burst: 2})
	router := setupTestRouter()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
	// buckets are per client
	assert.Equal(t, http.StatusOK, send("203.0.113.2"))
}

package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/middleware"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	customer = middleware.UserContext{UserID: 1, Email: "asha@example.com", Role: models.RoleCustomer}
	stranger = middleware.UserContext{UserID: 2, Email: "ben@example.com", Role: models.RoleCustomer}
	admin    = middleware.UserContext{UserID: 99, Email: "admin@example.com", Role: models.RoleAdmin}
)

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

// setupRouter authenticates every request as user
func setupRouter(user *middleware.UserContext) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.UserContextKey, *user)
		}
		c.Next()
	})
	return router
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var bookingCols = []string{
	"id", "customer_id", "provider_id", "service_name", "booking_date", "booking_time",
	"duration_hours", "address", "notes", "status", "total_amount_cents",
	"provider_amount_cents", "commission_amount_cents", "suggested_date", "suggested_time",
	"prior_status", "refund_status", "version", "created_at", "updated_at",
}

func bookingRows(status string, version int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingCols).AddRow(
		10, 1, 5, "Babysitting", "2024-05-01", "10:00",
		2, "X", nil, status, 60000,
		nil, nil, nil, nil,
		nil, "none", version, now, now,
	)
}

func bookingRouter(t *testing.T, user *middleware.UserContext) (*gin.Engine, sqlmock.Sqlmock) {
	db, mock := setupTestDB(t)
	logger := nullLogger()
	svc := services.NewBookingService(
		database.NewBookingRepository(db),
		database.NewProviderRepository(db),
		nil,
		config.MarketplaceConfig{ProviderShareBps: 8500, MaxDurationHours: 12, MaxBookingDaysAhead: 90, Currency: "INR"},
		logger,
	)
	h := NewBookingHandler(svc, logger)

	router := setupRouter(user)
	router.GET("/bookings/:id", h.GetBooking)
	router.PATCH("/bookings/:id/accept", h.Transition(models.BookingEventAccept))
	router.PATCH("/bookings/:id/reschedule/response", h.RespondReschedule)
	return router, mock
}

func TestGetBooking(t *testing.T) {
	t.Run("Owner", func(t *testing.T) {
		router, mock := bookingRouter(t, &customer)
		mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\$1").
			WithArgs(int64(10)).
			WillReturnRows(bookingRows("pending", 1))

		w := perform(router, http.MethodGet, "/bookings/10", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "pending", body["status"])
		assert.Equal(t, 600.0, body["total_amount"])
		assert.Equal(t, float64(1), body["version"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not a party", func(t *testing.T) {
		router, mock := bookingRouter(t, &stranger)
		mock.ExpectQuery("SELECT .* FROM bookings").WillReturnRows(bookingRows("pending", 1))

		w := perform(router, http.MethodGet, "/bookings/10", nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", decode(t, w)["code"])
	})

	t.Run("Missing", func(t *testing.T) {
		router, mock := bookingRouter(t, &customer)
		mock.ExpectQuery("SELECT .* FROM bookings").WillReturnError(sql.ErrNoRows)

		w := perform(router, http.MethodGet, "/bookings/10", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		details := decode(t, w)["details"].(map[string]interface{})
		assert.Equal(t, "booking", details["entity"])
		assert.Equal(t, float64(10), details["id"])
	})

	t.Run("Bad id", func(t *testing.T) {
		router, mock := bookingRouter(t, &customer)

		w := perform(router, http.MethodGet, "/bookings/abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ID", decode(t, w)["code"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database failure is hidden", func(t *testing.T) {
		router, mock := bookingRouter(t, &customer)
		mock.ExpectQuery("SELECT .* FROM bookings").WillReturnError(errors.New("connection reset"))

		w := perform(router, http.MethodGet, "/bookings/10", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

func TestTransitionErrors(t *testing.T) {
	t.Run("Customer cannot accept", func(t *testing.T) {
		router, mock := bookingRouter(t, &customer)
		mock.ExpectQuery("SELECT .* FROM bookings").WillReturnRows(bookingRows("pending", 1))

		w := perform(router, http.MethodPatch, "/bookings/10/accept", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode(t, w)
		assert.Equal(t, "invalid_transition", body["error"])
		details := body["details"].(map[string]interface{})
		assert.Equal(t, "booking", details["entity"])
		assert.Equal(t, "accept", details["event"])
		assert.Equal(t, "pending", details["current_status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Stale expected version", func(t *testing.T) {
		router, mock := bookingRouter(t, &admin)
		mock.ExpectQuery("SELECT .* FROM bookings").WillReturnRows(bookingRows("pending", 4))

		w := perform(router, http.MethodPatch, "/bookings/10/accept", gin.H{"expected_version": 3})

		assert.Equal(t, http.StatusConflict, w.Code)
		details := decode(t, w)["details"].(map[string]interface{})
		assert.Equal(t, float64(3), details["expected_version"])
		assert.Equal(t, float64(4), details["actual_version"])
	})

	t.Run("Reschedule answer is required", func(t *testing.T) {
		router, mock := bookingRouter(t, &customer)

		w := perform(router, http.MethodPatch, "/bookings/10/reschedule/response", gin.H{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decode(t, w)["code"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestComplaintAction(t *testing.T) {
	logger := nullLogger()
	h := NewComplaintHandler(services.NewComplaintService(nil, nil, nil, nil, logger), logger)

	router := setupRouter(&admin)
	router.PATCH("/admin/complaints/:id/:action", h.Action)

	w := perform(router, http.MethodPatch, "/admin/complaints/3/escalate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "event", decode(t, w)["details"].(map[string]interface{})["field"])

	w = perform(router, http.MethodPatch, "/admin/complaints/3/resolve", gin.H{"resolution": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "resolution", decode(t, w)["details"].(map[string]interface{})["field"])

	customerRouter := setupRouter(&customer)
	customerRouter.PATCH("/admin/complaints/:id/:action", h.Action)
	w = perform(customerRouter, http.MethodPatch, "/admin/complaints/3/investigate", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthHandler(t *testing.T) {
	db, mock := setupTestDB(t)
	logger := nullLogger()
	authService := services.NewAuthService(
		database.NewUserRepository(db),
		database.NewRefreshTokenRepository(db),
		database.NewProviderRepository(db),
		nil,
		services.NewAuditService(nil, logger, false),
		4,
		logger,
	)
	h := NewAuthHandler(authService, logger)

	router := setupRouter(&customer)
	router.POST("/auth/register", h.RegisterCustomer)
	router.GET("/auth/me", h.Me)
	router.PATCH("/auth/me", h.UpdateProfile)

	userCols := []string{
		"id", "name", "email", "password_hash", "phone", "role", "wallet_balance_cents",
		"last_login_at", "created_at", "updated_at",
	}

	t.Run("Register rejects an incomplete body", func(t *testing.T) {
		w := perform(router, http.MethodPost, "/auth/register", gin.H{"email": "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decode(t, w)["error"])
	})

	t.Run("Me", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT .* FROM users WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "email", "password_hash", "phone", "role", "wallet_balance_cents",
				"last_login_at", "created_at", "updated_at",
			}).AddRow(1, "Asha", "asha@example.com", "$2a$04$hash", nil, "customer", 0, nil, now, now))

		w := perform(router, http.MethodGet, "/auth/me", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "asha@example.com", body["email"])
		assert.NotContains(t, w.Body.String(), "password_hash")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Update profile", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT .* FROM users WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "Asha", "asha@example.com", "$2a$04$hash", nil, "customer", 0, nil, now, now))
		mock.ExpectQuery("UPDATE users SET name = \\$2").
			WithArgs(int64(1), "Asha Kulkarni", "asha@example.com", nil).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "Asha Kulkarni", "asha@example.com", "$2a$04$hash", nil, "customer", 0, nil, now, now))

		w := perform(router, http.MethodPatch, "/auth/me", gin.H{"name": "Asha Kulkarni"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Asha Kulkarni", decode(t, w)["name"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Update profile with a taken email", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT .* FROM users WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "Asha", "asha@example.com", "$2a$04$hash", nil, "customer", 0, nil, now, now))
		mock.ExpectQuery("SELECT .* FROM users WHERE LOWER\\(email\\) = LOWER\\(\\$1\\)").
			WithArgs("ben@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "Ben", "ben@example.com", "$2a$04$hash", nil, "customer", 0, nil, now, now))

		w := perform(router, http.MethodPatch, "/auth/me", gin.H{"email": "ben@example.com"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, "VALIDATION_FAILED", body["code"])
		assert.Equal(t, map[string]interface{}{"field": "email"}, body["details"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

type stubPurger struct{ calls int }

func (s *stubPurger) CleanupExpiredTokens(ctx context.Context, retention time.Duration) (int64, error) {
	s.calls++
	return 2, nil
}

func TestInquiryHandler(t *testing.T) {
	db, mock := setupTestDB(t)
	logger := nullLogger()
	h := NewInquiryHandler(services.NewInquiryService(database.NewInquiryRepository(db),
		services.NewAuditService(nil, logger, false), logger), logger)

	inquiryCols := []string{
		"id", "user_id", "name", "email", "phone", "subject", "message", "status", "created_at", "updated_at",
	}
	now := time.Now()

	public := setupRouter(nil)
	public.POST("/inquiries", h.Submit)
	adminRouter := setupRouter(&admin)
	adminRouter.GET("/admin/inquiries", h.List)
	adminRouter.PATCH("/admin/inquiries/:id/status", h.UpdateStatus)

	t.Run("Submit anonymously", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO inquiries`).
			WithArgs(nil, "Meera", "meera@example.com", nil, "Pricing", "Do you serve Nashik?").
			WillReturnRows(sqlmock.NewRows(inquiryCols).AddRow(
				4, nil, "Meera", "meera@example.com", nil, "Pricing", "Do you serve Nashik?", "new", now, now))

		w := perform(public, http.MethodPost, "/inquiries", gin.H{
			"name": "Meera", "email": "meera@example.com", "subject": "Pricing", "message": "Do you serve Nashik?",
		})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "new", decode(t, w)["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Submit without a message", func(t *testing.T) {
		w := perform(public, http.MethodPost, "/inquiries", gin.H{"name": "Meera", "email": "meera@example.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List by unknown status", func(t *testing.T) {
		w := perform(adminRouter, http.MethodGet, "/admin/inquiries?status=spam", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "status", decode(t, w)["details"].(map[string]interface{})["field"])
	})

	t.Run("Reopen a closed inquiry", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM inquiries WHERE id = \$1`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows(inquiryCols).AddRow(
				4, nil, "Meera", "meera@example.com", nil, "Pricing", "Do you serve Nashik?", "closed", now, now))

		w := perform(adminRouter, http.MethodPatch, "/admin/inquiries/4/status", gin.H{"status": "in_progress"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "invalid_transition", decode(t, w)["error"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Customers cannot list", func(t *testing.T) {
		customerRouter := setupRouter(&customer)
		customerRouter.GET("/admin/inquiries", h.List)
		w := perform(customerRouter, http.MethodGet, "/admin/inquiries", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAdminHandler(t *testing.T) {
	logger := nullLogger()
	purger := &stubPurger{}
	cronService := services.NewCronService(config.CronConfig{}, purger, nil, nil, logger)
	exportService := services.NewExportService(nil, nil, 8500, logger)
	h := NewAdminHandler(nil, nil, exportService, cronService, logger)

	router := setupRouter(&admin)
	router.GET("/admin/bookings/export", h.ExportBookings)
	router.POST("/admin/cron/:job/run", h.RunCronJob)

	w := perform(router, http.MethodGet, "/admin/bookings/export?from=2024-05-10&to=2024-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "to", decode(t, w)["details"].(map[string]interface{})["field"])

	w = perform(router, http.MethodPost, "/admin/cron/purge_tokens/run", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, purger.calls)

	w = perform(router, http.MethodPost, "/admin/cron/reindex/run", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	router := setupRouter(nil)
	router.GET("/health", NewHealthHandler("test", map[string]HealthCheck{"database": ok}).Health)
	router.GET("/degraded", NewHealthHandler("test", map[string]HealthCheck{"database": ok, "redis": down}).Health)

	w := perform(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = perform(router, http.MethodGet, "/degraded", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "unhealthy", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["database"])
	assert.Contains(t, deps["redis"], "refused")
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", 100, 0},
		{"?limit=-1&offset=-3", 20, 0},
		{"?limit=abc", 20, 0},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
		limit, offset := pagination(c)
		assert.Equal(t, tt.limit, limit, tt.query)
		assert.Equal(t, tt.offset, offset, tt.query)
	}
}

func TestActorOf(t *testing.T) {
	newContext := func() *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
		return c
	}

	t.Run("Anonymous", func(t *testing.T) {
		assert.Equal(t, services.Actor{}, actorOf(newContext()))
	})

	t.Run("Token Carries Provider", func(t *testing.T) {
		c := newContext()
		c.Set(middleware.UserContextKey, middleware.UserContext{UserID: 50, Role: models.RoleProvider, ProviderID: 5})
		c.Set(middleware.ProviderIDKey, int64(9))
		assert.Equal(t, int64(5), actorOf(c).ProviderID)
	})

	t.Run("Profile Resolved By Middleware", func(t *testing.T) {
		c := newContext()
		c.Set(middleware.UserContextKey, middleware.UserContext{UserID: 50, Role: models.RoleProvider})
		c.Set(middleware.ProviderIDKey, int64(5))
		actor := actorOf(c)
		assert.Equal(t, int64(50), actor.UserID)
		assert.Equal(t, int64(5), actor.ProviderID)
	})
}

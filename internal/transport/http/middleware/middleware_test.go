// file: internal/transport/http/middleware/middleware_test.go
package middleware_test

import (
	"SQLRet/internal/core/port"
	"SQLRet/internal/service/workbench"
	"SQLRet/internal/transport/http/middleware"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusFor(t *testing.T) {
	type form struct {
		Port int `validate:"min=1"`
	}
	validationErr := validator.New().Struct(form{})
	require.Error(t, validationErr)

	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", validationErr, http.StatusBadRequest},
		{"empty query", workbench.ErrEmptyQuery, http.StatusBadRequest},
		{"setup required", port.ErrSetupRequired, http.StatusConflict},
		{"bad api key", port.NewError(port.KindAuthentication, "make agent", port.ErrEmptyAPIKey), http.StatusUnauthorized},
		{"connection", port.NewError(port.KindConnection, "build", errors.New("refused")), http.StatusBadGateway},
		{"introspection", port.NewError(port.KindIntrospection, "inspect", errors.New("denied")), http.StatusBadGateway},
		{"query execution", port.NewError(port.KindQueryExecution, "invoke", errors.New("quota")), http.StatusBadGateway},
		{"wrapped", fmt.Errorf("handler: %w", port.ErrSetupRequired), http.StatusConflict},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, middleware.StatusFor(tc.err))
		})
	}
}

func TestErrorHandlingMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(middleware.ErrorHandlingMiddleware())
	r.GET("/classified", func(c *gin.Context) {
		_ = c.Error(port.NewError(port.KindConnection, "build connection", errors.New("refused")))
	})
	r.GET("/internal", func(c *gin.Context) {
		_ = c.Error(errors.New("secret detail"))
	})
	r.GET("/bind", func(c *gin.Context) {
		_ = c.Error(errors.New("invalid character '}'")).SetType(gin.ErrorTypeBind)
	})
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	t.Run("classified error", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/classified", nil))
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Body.String(), "refused")
	})

	t.Run("internal error hides details", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "secret detail")
	})

	t.Run("bind error is a bad request", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bind", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("written response is kept", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/written", nil))
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})
}

func newSessionRouter(store *workbench.Store) *gin.Engine {
	r := gin.New()
	cookies := middleware.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false)
	r.Use(middleware.Session(cookies, store, "sqlret_session"))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.SessionFrom(c).ID)
	})
	return r
}

func TestSession(t *testing.T) {
	store := workbench.NewStore(8, time.Minute)
	r := newSessionRouter(store)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, first.Code)
	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sqlret_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	id := first.Body.String()
	assert.NotEmpty(t, id)

	t.Run("cookie resolves to the same session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(cookies[0])
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, id, rr.Body.String())
		assert.Empty(t, rr.Result().Cookies())
	})

	t.Run("tampered cookie gets a new session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: "sqlret_session", Value: "forged"})
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.NotEqual(t, id, rr.Body.String())
		assert.Len(t, rr.Result().Cookies(), 1)
	})

	t.Run("evicted session is recreated", func(t *testing.T) {
		store.Remove(id)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(cookies[0])
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.NotEqual(t, id, rr.Body.String())
	})

	t.Run("missing middleware", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Nil(t, middleware.SessionFrom(c))
	})
}

func TestQueryLimiter(t *testing.T) {
	l := middleware.NewQueryLimiter(0.001, 2)
	r := gin.New()
	r.POST("/query", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/query", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 不同的键互不影响
	assert.True(t, l.Allow("session:other"))
}

func TestSetupFailureLock(t *testing.T) {
	newRouter := func(status *int) (*gin.Engine, *middleware.SetupFailureLock) {
		lock := middleware.NewSetupFailureLock(2, time.Minute, time.Minute)
		r := gin.New()
		r.POST("/setup", lock.Middleware(), func(c *gin.Context) {
			c.Status(*status)
		})
		return r, lock
	}
	do := func(r *gin.Engine) int {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/setup", nil))
		return rr.Code
	}

	t.Run("locks after repeated failures", func(t *testing.T) {
		status := http.StatusBadGateway
		r, lock := newRouter(&status)

		assert.Equal(t, http.StatusBadGateway, do(r))
		assert.Equal(t, http.StatusBadGateway, do(r))
		assert.Equal(t, http.StatusTooManyRequests, do(r))

		ip := "192.0.2.1" // httptest.NewRequest 的默认 RemoteAddr
		assert.True(t, lock.Locked(ip))
	})

	t.Run("validation failures are not counted", func(t *testing.T) {
		status := http.StatusBadRequest
		r, _ := newRouter(&status)
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusBadRequest, do(r))
		}
	})

	t.Run("success resets the counter", func(t *testing.T) {
		status := http.StatusUnauthorized
		r, lock := newRouter(&status)
		assert.Equal(t, http.StatusUnauthorized, do(r))

		status = http.StatusOK
		assert.Equal(t, http.StatusOK, do(r))

		status = http.StatusUnauthorized
		assert.Equal(t, http.StatusUnauthorized, do(r))
		assert.False(t, lock.Locked("192.0.2.1"))
	})
}

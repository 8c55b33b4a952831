package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"canteen-api/auth"
	"canteen-api/models"
	"canteen-api/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryStore map[string]auth.Principal

func (m memoryStore) Create(_ context.Context, p auth.Principal) (string, error) {
	id := "sid-" + string(rune('a'+len(m)))
	m[id] = p
	return id, nil
}

func (m memoryStore) Get(_ context.Context, id string) (*auth.Principal, error) {
	p, ok := m[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &p, nil
}

func (m memoryStore) Delete(_ context.Context, id string) error {
	delete(m, id)
	return nil
}

func newEngine(tokens *auth.TokenManager, store session.Store, mws ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Authenticate(tokens, store, "sid", zap.NewNop()))
	handlers := append(mws, func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"user": 0})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": p.UserID, "role": p.Role})
	})
	r.GET("/", handlers...)
	return r
}

func serve(r http.Handler, header, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticatePrecedence(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	store := memoryStore{}
	sid, _ := store.Create(context.Background(), auth.Principal{UserID: 7, Role: models.RoleStudent})
	token, err := tokens.Generate(&models.User{ID: 3, Phone: "9000000000", Role: models.RoleAdmin})
	require.NoError(t, err)
	r := newEngine(tokens, store)

	tests := []struct {
		name   string
		header string
		cookie string
		status int
		body   string
	}{
		{"anonymous", "", "", http.StatusOK, `"user":0`},
		{"cookie", "", sid, http.StatusOK, `"user":7`},
		{"bearer wins over cookie", "Bearer " + token, sid, http.StatusOK, `"user":3`},
		{"bad bearer with good cookie", "Bearer nope", sid, http.StatusUnauthorized, `"unauthenticated"`},
		{"non-bearer scheme", "Basic abc", "", http.StatusUnauthorized, `"unauthenticated"`},
		{"unknown cookie", "", "stale", http.StatusOK, `"user":0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.header, tt.cookie)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	store := memoryStore{}
	student, _ := store.Create(context.Background(), auth.Principal{UserID: 1, Role: models.RoleStudent})
	admin, _ := store.Create(context.Background(), auth.Principal{UserID: 2, Role: models.RoleAdmin})
	r := newEngine(tokens, store, RequireAuth(), RequireRole(models.RoleAdmin))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, "", student).Code)
	assert.Equal(t, http.StatusOK, serve(r, "", admin).Code)
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2, zap.NewNop())
	r := gin.New()
	r.GET("/", limiter.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, "", "").Code)
	}
	w := serve(r, "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limited")

	limiter.now = func() time.Time { return time.Now().Add(time.Hour) }
	limiter.Cleanup(5 * time.Minute)
	count := 0
	limiter.visitors.Range(func(any, any) bool { count++; return true })
	assert.Zero(t, count)
}

func TestIPRateLimiterForwardedFor(t *testing.T) {
	send := func(r http.Handler, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:4321"
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	engine := func(trusted []string) *gin.Engine {
		r := gin.New()
		require.NoError(t, r.SetTrustedProxies(trusted))
		r.GET("/", NewIPRateLimiter(1, 2, zap.NewNop()).Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	t.Run("untrusted peer cannot rotate the header", func(t *testing.T) {
		r := engine(nil)
		throttled := 0
		for i := 0; i < 10; i++ {
			if send(r, "203.0.113."+strconv.Itoa(i)) == http.StatusTooManyRequests {
				throttled++
			}
		}
		assert.Equal(t, 8, throttled)
	})

	t.Run("trusted proxy forwards distinct clients", func(t *testing.T) {
		r := engine([]string{"192.0.2.1"})
		for i := 0; i < 10; i++ {
			assert.Equal(t, http.StatusNoContent, send(r, "203.0.113."+strconv.Itoa(i)))
		}
	})
}

func TestIPRateLimiterCleanupKeepsActive(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2, zap.NewNop())
	limiter.getLimiter("198.51.100.7")
	limiter.Cleanup(5 * time.Minute)
	_, ok := limiter.visitors.Load("198.51.100.7")
	assert.True(t, ok)

	limiter.now = func() time.Time { return time.Now().Add(time.Hour) }
	limiter.Cleanup(5 * time.Minute)
	count := 0
	limiter.visitors.Range(func(any, any) bool { count++; return true })
	assert.Zero(t, count)
}

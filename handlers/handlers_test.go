package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"canteen-api/auth"
	"canteen-api/config"
	"canteen-api/handlers"
	"canteen-api/middleware"
	"canteen-api/notify"
	"canteen-api/routes"
	"canteen-api/services"
	"canteen-api/session"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	cookieName = "canteen_sid"
	adminPhone = "9111111111"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	log := zap.NewNop()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	sessions := session.NewGormStore(db, time.Hour)
	authSvc := services.NewAuthService(db, tokens, notify.LogSMS{Log: log}, notify.LogEmail{Log: log}, nil, log,
		services.AuthConfig{ExposeCodes: true, AdminPhones: []string{adminPhone}})
	h := handlers.New(authSvc, services.NewMenuService(db), services.NewOrderService(db), sessions,
		handlers.CookieConfig{Name: cookieName, TTL: time.Hour}, log, false)

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	routes.SetupRoutes(r, h, middleware.Authenticate(tokens, sessions, cookieName, log), nil)
	return r
}

type request struct {
	method string
	path   string
	body   any
	token  string
	cookie *http.Cookie
}

func do(t *testing.T, r http.Handler, req request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(req.body))
	}
	httpReq := httptest.NewRequest(req.method, req.path, &buf)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.cookie != nil {
		httpReq.AddCookie(req.cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

// register creates a password account and returns its bearer token.
func register(t *testing.T, r http.Handler, name, phone string) string {
	t.Helper()
	w, body := do(t, r, request{method: http.MethodPost, path: "/api/auth/register", body: gin.H{
		"name": name, "phone": phone, "password": "hunter22",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["token"].(string)
}

func addMenuItem(t *testing.T, r http.Handler, adminToken, name string, price float64) uint {
	t.Helper()
	w, body := do(t, r, request{method: http.MethodPost, path: "/api/menu", token: adminToken, body: gin.H{
		"name": name, "description": name + " of the day", "price": price,
		"category": "snacks", "image": "/img/" + name + ".png", "preparationTime": 5,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return uint(body["item"].(map[string]any)["id"].(float64))
}

func TestHealth(t *testing.T) {
	w, body := do(t, newRouter(t), request{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestOTPLoginSessionFlow(t *testing.T) {
	r := newRouter(t)

	w, body := do(t, r, request{method: http.MethodPost, path: "/api/auth/send-otp", body: gin.H{"phone": "9000000000", "name": "Asha"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["isNewUser"])
	otp, _ := body["otp"].(string)
	require.Len(t, otp, 6)

	w, body = do(t, r, request{method: http.MethodPost, path: "/api/auth/verify-otp", body: gin.H{"phone": "9000000000", "otp": otp}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := body["token"].(string)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/auth/current-user", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Asha", body["user"].(map[string]any)["name"])
	assert.NotContains(t, body["user"], "OTPCode")

	w, _ = do(t, r, request{method: http.MethodGet, path: "/api/auth/current-user", token: token})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/auth/current-user", token: "garbage", cookie: cookie})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", body["code"])

	w, body = do(t, r, request{method: http.MethodPut, path: "/api/auth/profile", cookie: cookie, body: gin.H{"block": "A", "classNumber": "5"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["user"].(map[string]any)["profileCompleted"])

	w, _ = do(t, r, request{method: http.MethodPost, path: "/api/auth/logout", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	w, _ = do(t, r, request{method: http.MethodGet, path: "/api/auth/current-user", cookie: cookie})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	r := newRouter(t)
	_, body := do(t, r, request{method: http.MethodPost, path: "/api/auth/send-otp", body: gin.H{"phone": "9000000000", "name": "Asha"}})
	otp := body["otp"].(string)
	wrong := "000000"
	if otp == wrong {
		wrong = "999999"
	}

	w, body := do(t, r, request{method: http.MethodPost, path: "/api/auth/verify-otp", body: gin.H{"phone": "9000000000", "otp": wrong}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired OTP", body["error"])

	w, _ = do(t, r, request{method: http.MethodPost, path: "/api/auth/verify-otp", body: gin.H{"phone": "9000000001", "otp": otp}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBindingErrorsListFields(t *testing.T) {
	r := newRouter(t)
	w, body := do(t, r, request{method: http.MethodPost, path: "/api/auth/register", body: gin.H{"phone": "9000000000", "password": "123"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["code"])
	fields := body["fields"].([]any)
	assert.Len(t, fields, 2)
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	r := newRouter(t)
	register(t, r, "Ravi", "9000000002")

	for i := 0; i < 5; i++ {
		w, _ := do(t, r, request{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"phone": "9000000002", "password": "nope-nope"}})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, body := do(t, r, request{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"phone": "9000000002", "password": "hunter22"}})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "account_locked", body["code"])
}

func TestMenuAdministration(t *testing.T) {
	r := newRouter(t)
	admin := register(t, r, "Ops", adminPhone)
	student := register(t, r, "Ravi", "9000000002")

	w, _ := do(t, r, request{method: http.MethodPost, path: "/api/menu", token: student, body: gin.H{"name": "x"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = do(t, r, request{method: http.MethodPost, path: "/api/menu", body: gin.H{"name": "x"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := do(t, r, request{method: http.MethodPost, path: "/api/menu", token: admin, body: gin.H{
		"name": "Samosa", "description": "Crisp", "price": -1, "category": "snacks", "image": "/s.png", "preparationTime": 5,
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["fields"])

	id := addMenuItem(t, r, admin, "samosa", 15)
	addMenuItem(t, r, admin, "puff", 20)

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/menu?category=snacks"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])

	w, body = do(t, r, request{method: http.MethodPut, path: "/api/menu/" + itoa(id) + "/toggle-availability", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["item"].(map[string]any)["isAvailable"])

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/menu/category/snacks"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/menu/all", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])

	w, body = do(t, r, request{method: http.MethodPut, path: "/api/menu/" + itoa(id), token: admin, body: gin.H{"price": 18}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 18, body["item"].(map[string]any)["price"])
	assert.Equal(t, "samosa", body["item"].(map[string]any)["name"])

	w, _ = do(t, r, request{method: http.MethodGet, path: "/api/menu?category=desserts"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, request{method: http.MethodDelete, path: "/api/menu/" + itoa(id), token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, request{method: http.MethodGet, path: "/api/menu/" + itoa(id)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	r := newRouter(t)
	admin := register(t, r, "Ops", adminPhone)
	student := register(t, r, "Ravi", "9000000002")
	samosa := addMenuItem(t, r, admin, "samosa", 50)
	tea := addMenuItem(t, r, admin, "tea", 30)

	w, body := do(t, r, request{method: http.MethodPost, path: "/api/orders", token: student, body: gin.H{
		"items": []gin.H{
			{"menuItemId": samosa, "quantity": 2, "price": 1},
			{"menuItemId": tea, "quantity": 1},
		},
		"deliveryLocation": gin.H{"block": "A", "classNumber": "5"},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := body["order"].(map[string]any)
	assert.EqualValues(t, 130, order["totalAmount"])
	assert.Equal(t, "pending", order["status"])
	id := itoa(uint(order["id"].(float64)))

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/orders/my-orders", token: student})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, _ = do(t, r, request{method: http.MethodPut, path: "/api/orders/" + id + "/status", token: student, body: gin.H{"status": "confirmed"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = do(t, r, request{method: http.MethodPut, path: "/api/orders/" + id + "/status", token: admin, body: gin.H{"status": "ready"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ready", body["order"].(map[string]any)["status"])

	w, body = do(t, r, request{method: http.MethodPut, path: "/api/orders/" + id + "/cancel", token: student})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state", body["code"])

	w, body = do(t, r, request{method: http.MethodPut, path: "/api/orders/" + id + "/payment", token: admin, body: gin.H{"paymentStatus": "completed"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["order"].(map[string]any)["paymentStatus"])

	w, _ = do(t, r, request{method: http.MethodPut, path: "/api/orders/" + id + "/status", token: admin, body: gin.H{"status": "delivered"}})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/orders/all?status=delivered", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 130, body["totalRevenue"])

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/orders/" + id, token: student})
	require.Equal(t, http.StatusOK, w.Code)
	history := body["order"].(map[string]any)["statusHistory"].([]any)
	assert.Len(t, history, 3)
}

func TestGuestCheckout(t *testing.T) {
	r := newRouter(t)
	admin := register(t, r, "Ops", adminPhone)
	vada := addMenuItem(t, r, admin, "vada", 20)

	w, body := do(t, r, request{method: http.MethodPost, path: "/api/orders", body: gin.H{
		"items":            []gin.H{{"menuItemId": vada, "quantity": 3}},
		"deliveryLocation": gin.H{"block": "B", "classNumber": "7"},
		"customerDetails":  gin.H{"name": "Guest", "phone": "9000000030"},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := itoa(uint(body["order"].(map[string]any)["id"].(float64)))

	w, body = do(t, r, request{method: http.MethodGet, path: "/api/orders/guest/9000000030"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, _ = do(t, r, request{method: http.MethodGet, path: "/api/orders/" + id})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = do(t, r, request{method: http.MethodPost, path: "/api/orders", body: gin.H{
		"items":            []gin.H{{"menuItemId": 999, "quantity": 1}},
		"deliveryLocation": gin.H{"block": "B", "classNumber": "7"},
		"customerDetails":  gin.H{"name": "Guest", "phone": "9000000030"},
	}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["code"])

	w, body = do(t, r, request{method: http.MethodPost, path: "/api/orders", body: gin.H{
		"items":           []gin.H{{"menuItemId": vada, "quantity": 1}},
		"customerDetails": gin.H{"name": "Mallory", "phone": adminPhone},
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, body["order"])
}

func TestAdminUsers(t *testing.T) {
	r := newRouter(t)
	admin := register(t, r, "Ops", adminPhone)
	student := register(t, r, "Ravi", "9000000002")

	w, _ := do(t, r, request{method: http.MethodGet, path: "/api/admin/users", token: student})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := do(t, r, request{method: http.MethodGet, path: "/api/admin/users?role=student", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

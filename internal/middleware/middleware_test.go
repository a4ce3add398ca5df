package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"failboard/config"
	"failboard/internal/models"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testCfg = &config.Config{JWTSecretKey: "test-secret", JWTIssuer: "failboard", JWTExpirationTime: time.Hour}

type setBlacklist map[string]bool

func (s setBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

func whoami(c *gin.Context) {
	uid, _ := utils.GetUserID(c)
	c.String(http.StatusOK, uid)
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	good, _ := utils.GenerateToken(testCfg, "u1", "Ana")
	revoked, _ := utils.GenerateToken(testCfg, "u2", "Ben")
	jti, _ := utils.TokenID(revoked)
	otherIssuer, _ := utils.GenerateToken(&config.Config{JWTSecretKey: "test-secret", JWTIssuer: "elsewhere", JWTExpirationTime: time.Hour}, "u3", "Cem")

	r := gin.New()
	r.GET("/me", JWTAuthMiddleware(testCfg, setBlacklist{jti: true}), whoami)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
		body    string
	}{
		{"valid", bearer(good), http.StatusOK, "u1"},
		{"missing", nil, http.StatusUnauthorized, ""},
		{"wrong scheme", map[string]string{"Authorization": "Token " + good}, http.StatusUnauthorized, ""},
		{"garbage", bearer("not.a.jwt"), http.StatusUnauthorized, ""},
		{"revoked", bearer(revoked), http.StatusUnauthorized, ""},
		{"wrong issuer", bearer(otherIssuer), http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/me", tt.headers)
			if w.Code != tt.want {
				t.Errorf("want %d, got %d", tt.want, w.Code)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("want body %q, got %q", tt.body, w.Body.String())
			}
		})
	}
}

func TestJWTAuthMiddlewareWebsocketQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	good, _ := utils.GenerateToken(testCfg, "u1", "Ana")

	r := gin.New()
	r.GET("/ws", JWTAuthMiddleware(testCfg, nil), whoami)

	upgrade := map[string]string{"Connection": "upgrade", "Upgrade": "websocket"}
	if w := serve(r, http.MethodGet, "/ws?token="+good, upgrade); w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Errorf("want 200 u1 for websocket query token, got %d %q", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/ws?token="+good, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("want 401 for query token on plain request, got %d", w.Code)
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	good, _ := utils.GenerateToken(testCfg, "u1", "Ana")

	r := gin.New()
	r.GET("/stories", OptionalAuthMiddleware(testCfg, nil), whoami)

	if w := serve(r, http.MethodGet, "/stories", nil); w.Code != http.StatusOK || w.Body.String() != "" {
		t.Errorf("want anonymous 200, got %d %q", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/stories", bearer(good)); w.Body.String() != "u1" {
		t.Errorf("want u1, got %q", w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/stories", bearer("broken")); w.Code != http.StatusUnauthorized {
		t.Errorf("want 401 for a bad token, got %d", w.Code)
	}
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.Profile{}); err != nil {
		t.Fatal(err)
	}
	db.Create(&models.Profile{ID: "admin", Email: "a@example.com", IsAdmin: true})
	db.Create(&models.Profile{ID: "user", Email: "u@example.com"})
	db.Create(&models.Profile{ID: "fallen", Email: "f@example.com", IsAdmin: true, IsBanned: true})

	r := gin.New()
	r.GET("/admin", JWTAuthMiddleware(testCfg, nil), AdminOnly(db), whoami)

	for id, want := range map[string]int{"admin": http.StatusOK, "user": http.StatusForbidden, "fallen": http.StatusForbidden, "ghost": http.StatusForbidden} {
		token, _ := utils.GenerateToken(testCfg, id, id)
		if w := serve(r, http.MethodGet, "/admin", bearer(token)); w.Code != want {
			t.Errorf("%s: want %d, got %d", id, want, w.Code)
		}
	}
}

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) AllowRequest(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &countingLimiter{counts: map[string]int{}}
	r := gin.New()
	r.POST("/stories", RateLimitMiddleware(limiter, "post_story", 2, time.Minute), whoami)

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, http.MethodPost, "/stories", nil).Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: want %d, got %d", i, want[i], codes[i])
		}
	}

	limiter.err = errors.New("redis down")
	if w := serve(r, http.MethodPost, "/stories", nil); w.Code != http.StatusOK {
		t.Errorf("want limiter failure to let the request through, got %d", w.Code)
	}
}

type memLogWriter struct {
	msgs []kafka.Message
}

func (m *memLogWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func TestKafkaLogMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := &memLogWriter{}
	r := gin.New()
	r.Use(KafkaLogMiddleware(w, "failboard"))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve(r, http.MethodGet, "/missing", nil)

	if len(w.msgs) != 1 {
		t.Fatalf("want 1 log message, got %d", len(w.msgs))
	}
	var entry LogEntry
	if err := json.Unmarshal(w.msgs[0].Value, &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Service != "failboard" || entry.Path != "/missing" || entry.StatusCode != http.StatusNotFound {
		t.Errorf("want failboard /missing 404, got %+v", entry)
	}
}

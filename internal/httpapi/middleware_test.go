package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, rdb := newRedis(t)

	r := gin.New()
	r.Use(RateLimit(rdb, "rl:auth", 2, time.Minute))
	r.POST("/auth/sign-in", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
		req.RemoteAddr = ip + ":5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit("198.51.100.7").Code)
	assert.Equal(t, http.StatusOK, hit("198.51.100.7").Code)

	w := hit("198.51.100.7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, hit("198.51.100.8").Code, "limits are per client IP")
}

func TestRateLimit_FailsOpenWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimit(rdb, "rl:auth", 1, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSerializePerCompany(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, rdb := newRedis(t)
	p := adminPrincipal()

	r := gin.New()
	r.Use(withPrincipal(p), SerializePerCompany(rdb, "saml:lock", time.Minute))
	r.POST("/saml/configure", func(c *gin.Context) {
		assert.True(t, mr.Exists("saml:lock:co-1"), "held while the handler runs")
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/saml/configure", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, mr.Exists("saml:lock:co-1"), "released afterwards")

	require.NoError(t, mr.Set("saml:lock:co-1", "1"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/saml/configure", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := Check{Name: "postgres", Ping: func(context.Context) error { return nil }}
	down := Check{Name: "redis", Ping: func(context.Context) error { return errors.New("refused") }}

	r := gin.New()
	r.GET("/ok", Health(time.Second, ok))
	r.GET("/down", Health(time.Second, ok, down))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"body":{"postgres":"ok"},"msg":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"success":false,"body":{"postgres":"ok","redis":"down"},"msg":"unhealthy"}`, w.Body.String())
}

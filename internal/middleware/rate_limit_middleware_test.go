package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestLimitByIP_FailOpenWhenRedisUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Недоступный Redis: лимитер обязан пропустить запрос (fail-open)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	rl := NewRateLimiter(client)

	router := gin.New()
	router.Use(rl.LimitByIP(DefaultGlobalRateLimitConfig()))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRateLimitConfigs_UseDistinctKeyPrefixes(t *testing.T) {
	// Счетчики групп не должны пересекаться в Redis
	prefixes := map[string]bool{
		DefaultGlobalRateLimitConfig().KeyPrefix:   true,
		DefaultPollRateLimitConfig().KeyPrefix:     true,
		DefaultMutationRateLimitConfig().KeyPrefix: true,
	}
	assert.Len(t, prefixes, 3)
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tenant-admin/internal/auth"
	"tenant-admin/pkg/logger"
	"tenant-admin/pkg/utils"
)

// RateLimit allows limit requests per client IP per window. Redis failures
// let the request through.
func RateLimit(rdb redis.Scripter, prefix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := prefix + ":" + c.ClientIP()
		ok, retry, err := utils.AllowFixedWindow(c.Request.Context(), rdb, key, limit, window)
		if err != nil {
			logger.FromGin(c).Warn("rate limit check failed", slog.Any("err", err))
			c.Next()
			return
		}
		if !ok {
			secs := int(retry.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, envelope{Msg: "Too many requests. Please try again later."})
			return
		}
		c.Next()
	}
}

// SerializePerCompany lets one request per active company through at a time.
// A busy company gets 409. Redis failures let the request through; the
// database constraints still hold.
func SerializePerCompany(rdb redis.Scripter, prefix string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.FromGin(c)
		if !ok || p.Company.ID == "" {
			c.Next()
			return
		}
		log := logger.FromGin(c)
		key := prefix + ":" + p.Company.ID

		acquired, err := utils.AcquireConcurrencyCap(c.Request.Context(), rdb, key, 1, ttl)
		if err != nil {
			log.Warn("concurrency cap unavailable", slog.Any("err", err))
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, envelope{Msg: "Another change is in progress for this company. Please retry."})
			return
		}
		defer func() {
			if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(c.Request.Context()), rdb, key); err != nil {
				log.Warn("concurrency cap release failed", slog.Any("err", err))
			}
		}()
		c.Next()
	}
}

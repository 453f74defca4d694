// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures a token bucket.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate. Zero or less disables limiting.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`

	// Burst is the bucket size. Default: 1 when limiting is enabled.
	Burst int `yaml:"burst"`
}

// NewLimiter builds the limiter for cfg, or nil when limiting is disabled.
func NewLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), burst)
}

// RateLimitMiddleware rejects requests with 429 once limiter runs dry.
// A nil limiter lets everything through.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		reservation := limiter.Reserve()
		if !reservation.OK() {
			reject(c, time.Second)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			reject(c, delay)
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	slog.Warn("Rate limit exceeded",
		"request_id", RequestID(c), "route", c.FullPath(), "retry_after_s", seconds)
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "rate limit exceeded",
		"code":  "RATE_LIMITED",
	})
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleCutoff = 10 * time.Minute
)

// visitorLimiters hands out one token bucket per client IP and drops
// buckets that have been idle past the cutoff.
type visitorLimiters struct {
	rps     rate.Limit
	burst   int
	buckets sync.Map // ip → *visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (v *visitorLimiters) get(ip string) *rate.Limiter {
	entry, _ := v.buckets.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(v.rps, v.burst)})
	vis := entry.(*visitor)
	vis.lastSeen = time.Now()
	return vis.limiter
}

func (v *visitorLimiters) sweep() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-limiterIdleCutoff)
		v.buckets.Range(func(k, val interface{}) bool {
			if val.(*visitor).lastSeen.Before(cutoff) {
				v.buckets.Delete(k)
			}
			return true
		})
	}
}

// RateLimit enforces a per-IP token bucket of r requests per second
// with burst capacity b.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	limiters := &visitorLimiters{rps: r, burst: b}
	go limiters.sweep()

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistveil/buildcalc/cache"
	"github.com/mistveil/buildcalc/config"
)

const AccountIDKey = "account_id"

// sessionKeyPrefix matches the key written by the auth handler on login.
const sessionKeyPrefix = "session:"

const sessionLookupTimeout = 2 * time.Second

// Auth guards a route group behind a Bearer JWT. The token signature
// must verify and the matching session key must still exist in the
// cache, so logout and TTL expiry both revoke access immediately.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr, ok := bearerToken(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), sessionLookupTimeout)
		defer cancel()
		alive, err := c.Exists(cacheCtx, sessionKeyPrefix+tokenStr)
		if err != nil || !alive {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx.Set(AccountIDKey, claims.AccountID)
		ctx.Next()
	}
}

// GetAccountID returns the authenticated account ID, or 0 outside the
// Auth middleware.
func GetAccountID(c *gin.Context) int64 {
	if v, ok := c.Get(AccountIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

func bearerToken(ctx *gin.Context) (string, bool) {
	header := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

package middlewares

import (
	"net/http"
	"strings"

	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const UserHeader = "X-User"

// SessionMiddleware puts the acting username in the request context.
// A "token" header is resolved through the "Token:<token>" Redis key set by
// the login service; without one the X-User header is trusted. Anonymous
// requests pass through and are attributed to the system user downstream.
func SessionMiddleware(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if token := strings.TrimSpace(c.GetHeader("token")); token != "" && rdb != nil {
			username, err := rdb.Get(ctx, "Token:"+token).Result()
			if err != nil || username == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Request = c.Request.WithContext(utils.SetUsernameInContext(ctx, username))
			c.Next()
			return
		}
		if user := strings.TrimSpace(c.GetHeader(UserHeader)); user != "" {
			c.Request = c.Request.WithContext(utils.SetUsernameInContext(ctx, user))
		}
		c.Next()
	}
}

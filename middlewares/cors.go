package middlewares

import (
	"os"
	"strings"

	"github.com/frete360/frete_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows every origin outside production. In production only
// CORS_ALLOWED_ORIGINS is allowed, and nothing when it is unset.
func CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		cfg.AllowOrigins = utils.SplitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", UserHeader, CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", CorrelationHeader)
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cors.New(cfg)
}

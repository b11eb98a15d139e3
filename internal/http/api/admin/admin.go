package admin

import (
	"net/http"
	"strings"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/config"
	handlers "github.com/Xcertik-Realist/X-name-change-bot/internal/http/api/admin/handlers"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/ratelimit"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/security"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options carries the dependencies of the admin routes.
type Options struct {
	DB      *gorm.DB
	JWT     config.JWTConfig
	Admin   config.AdminConfig
	Queries *store.QueryLog
	Limiter *ratelimit.GormLimiter
}

// RegisterAdminRoutes registers health, metrics and the authenticated admin API.
// The admin API is only mounted when an admin login and a JWT secret are configured.
func RegisterAdminRoutes(r *gin.Engine, opts Options) {
	if r == nil || opts.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(opts.DB)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.Admin.Username == "" || opts.Admin.PasswordHash == "" || strings.TrimSpace(opts.JWT.Secret) == "" {
		log.Warn("admin api disabled: set ADMIN_USERNAME, ADMIN_PASSWORD_HASH and JWT_SECRET to enable it")
		return
	}

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(opts.Admin, opts.JWT)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(opts.Admin, opts.JWT))

	if opts.Queries != nil {
		queryHandler := handlers.NewQueryHandler(opts.Queries)
		authed.GET("/stats", queryHandler.Stats)
		authed.GET("/queries", queryHandler.List)
	}

	if opts.Limiter != nil {
		rateLimitHandler := handlers.NewRateLimitHandler(opts.Limiter)
		authed.GET("/rate-limits/:identity", rateLimitHandler.Get)
	}

	settingHandler := handlers.NewSettingHandler(opts.DB)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(admin config.AdminConfig, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Username != admin.Username {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}

		c.Set("adminUsername", claims.Username)
		c.Next()
	}
}

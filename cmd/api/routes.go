package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/pg-life/internal/account"
	"github.com/yourusername/pg-life/internal/auth"
	"github.com/yourusername/pg-life/internal/observability"
	"github.com/yourusername/pg-life/internal/property"
	"github.com/yourusername/pg-life/internal/storage"
)

// newRouter はミドルウェアとルートを設定したルーターを返します。
func newRouter(a *app) *gin.Engine {
	// デフォルトミドルウェア: Logger, Recovery
	router := gin.Default()
	router.Use(a.metrics.GinMiddleware())
	router.Use(cors.New(corsConfig(a.cfg.AllowedOrigins())))

	if a.cfg.CSRFProtection {
		store := cookie.NewStore([]byte(a.cfg.SessionSecret))
		store.Options(sessions.Options{
			Path:     "/",
			MaxAge:   int(a.cfg.CookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   a.cfg.CookieSecure,
			SameSite: sameSite(a.cfg.CookieSecure),
		})
		router.Use(sessions.Sessions(auth.CSRFSessionName, store))
	}

	setupRoutes(router, a)
	return router
}

func corsConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		// 許可リストが無ければリクエスト元をそのまま許可する（credentials 付きでは * を返せない）
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		auth.CSRFHeader,
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{auth.CSRFHeader}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, a *app) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to PG LIFE")
	})
	router.GET("/health", handleHealth(a))
	router.GET("/metrics", gin.WrapH(observability.Handler(a.registry)))

	m := a.auth
	api := router.Group("/api/v1")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", m.Register)
			authRoutes.POST("/login", m.Login)
			authRoutes.GET("/verify", m.VerifyEmail)
			authRoutes.GET("/logout", m.RequireSession(), m.Logout)
			authRoutes.GET("/check", m.RequireSession(), m.Check)
		}

		properties := property.NewHandler(a.properties, a.accounts, a.logger.With("component", "property"), a.metrics)
		propertyRoutes := api.Group("/property")
		propertyRoutes.Use(m.RequireSession(), m.VerifyCSRF())
		{
			propertyRoutes.POST("/register-property", properties.Register)
			propertyRoutes.GET("/get-properties", properties.List)
			propertyRoutes.GET("/get-property/:id", properties.Get)
			propertyRoutes.PUT("/update-property/:id", properties.Update)
			propertyRoutes.DELETE("/delete-property/:id", properties.Delete)
		}

		admin := api.Group("/admin")
		admin.Use(m.RequireSession(), m.RequireRole(account.RoleAdmin))
		{
			admin.GET("/accounts", m.ListAccounts)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Route Not Found",
			"status":  http.StatusNotFound,
		})
	})
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "pg-life-api",
			"store":   storage.Status(c.Request.Context(), a.rdb),
		})
	}
}

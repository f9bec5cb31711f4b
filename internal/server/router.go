package server

import (
	"time"

	_ "github.com/abduss/blogapi/api/docs" // swagger spec
	"github.com/abduss/blogapi/internal/auth"
	"github.com/abduss/blogapi/internal/cache"
	"github.com/abduss/blogapi/internal/config"
	"github.com/abduss/blogapi/internal/logger"
	"github.com/abduss/blogapi/internal/media"
	"github.com/abduss/blogapi/internal/metrics"
	"github.com/abduss/blogapi/internal/post"
	"github.com/abduss/blogapi/internal/ratelimit"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	Logger       *zap.Logger
	Checks       []ReadinessCheck
	StartedAt    time.Time
	AuthService  *auth.Service
	PostService  *post.Service
	MediaService *media.Service
	Cache        *cache.ResponseCache
	RateLimiter  *ratelimit.Limiter
}

// NewRouter builds a Gin engine with the middleware chain and every route
// whose service is present in deps.
//
//	@title						Blog API
//	@version					1.0.0
//	@description				Blogging REST API with JWT access and refresh tokens.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(deps.Logger))
	router.Use(metrics.Middleware())
	router.Use(corsMiddleware(deps.Config.Server.AllowedOrigins))
	router.Use(securityHeaders())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)
	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler()))

	api := router.Group("/api/v1")
	registerSystemRoutes(api, deps)

	if deps.AuthService == nil {
		return router
	}

	var public []gin.HandlerFunc
	if deps.RateLimiter != nil {
		public = append(public, deps.RateLimiter.Middleware())
	}
	auth.RegisterRoutes(api, deps.AuthService, public...)

	gate := auth.Middleware(deps.AuthService)
	if deps.PostService != nil {
		var listCache gin.HandlerFunc
		if deps.Cache != nil {
			listCache = deps.Cache.Middleware()
		}
		post.RegisterRoutes(api, deps.PostService, gate, listCache)
	}
	if deps.MediaService != nil {
		media.RegisterRoutes(api, deps.MediaService, gate)
	}

	return router
}

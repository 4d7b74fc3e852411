package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paintress/paintress-sync/internal/server/events"
	"github.com/paintress/paintress-sync/internal/server/handlers/fs"
	"github.com/paintress/paintress-sync/internal/server/middlewares"
	"github.com/paintress/paintress-sync/internal/version"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func SetupRoutes(config *Config, svc *Services, hub *events.Hub) (http.Handler, error) {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20 // 32 MiB

	fsH := fs.New(svc.Files, hub)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if config.HTTP.TLS() {
		r.Use(middlewares.HSTS(true))
	}

	r.GET("/healthz", HealthHandler)

	rateLimit := config.HTTP.RateLimit
	if rateLimit == "" {
		rateLimit = DefaultRateLimit
	}
	limiter, err := middlewares.RateLimiter(rateLimit)
	if err != nil {
		return nil, err
	}

	v1 := r.Group("/api/v1")
	v1.Use(limiter)
	v1.Use(middlewares.JWTAuth(svc.Auth))
	{
		v1.GET("/ping", fsH.Ping)

		v1.GET("/fs/summary", fsH.Summary)
		v1.POST("/fs", fsH.Upload)
		v1.GET("/fs/file/:fileId", fsH.Download)

		v1.GET("/events", hub.Handler)
	}

	return r.Handler(), nil
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

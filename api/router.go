package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexex18/Restorical-Wisconsin/api/handler"
	"github.com/nexex18/Restorical-Wisconsin/api/middleware"
	"github.com/nexex18/Restorical-Wisconsin/cache"
	"github.com/nexex18/Restorical-Wisconsin/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → CORS
//	Relay:   Auth (if enabled) → RateLimit
//
// GET / is the worker-compatible surface the Python harvester calls;
// GET /api/v1/relay is the same handler under a versioned path. Health
// stays outside auth so monitoring probes always work.
func NewRouter(rl handler.Relayer, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.CORS())

	var relayChain []gin.HandlerFunc
	if cfg.Auth.Enabled {
		relayChain = append(relayChain, middleware.Auth(cfg.Auth.APIKeys))
	}
	relayChain = append(relayChain, middleware.RateLimit(cfg.RateLimit))
	relayChain = append(relayChain, handler.Relay(rl, cc))

	r.GET("/", relayChain...)

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(startTime))
	v1.GET("/relay", relayChain...)

	return r
}

// Package api builds the gin HTTP surface: routes, middleware, CORS.
package api

import (
	"net/http"

	"github.com/evetabi/perpsim/internal/api/handler"
	"github.com/evetabi/perpsim/internal/api/middleware"
	"github.com/evetabi/perpsim/internal/config"
	"github.com/evetabi/perpsim/internal/domain"
	"github.com/evetabi/perpsim/internal/engine"
	"github.com/evetabi/perpsim/internal/price"
	"github.com/evetabi/perpsim/internal/repository"
	"github.com/evetabi/perpsim/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Engine      *engine.Engine
	Feed        price.Feed
	Risk        *domain.RiskProfile
	Hub         *ws.Hub
	JournalRepo *repository.JournalRepository // nil when persistence is disabled
	Cfg         *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", healthHandler(deps.Feed))

	// ── Handlers ─────────────────────────────────────────────────────────────
	sessionH := handler.NewSessionHandler(deps.Cfg.JWT)
	accountH := handler.NewAccountHandler(deps.Engine, deps.JournalRepo)
	positionH := handler.NewPositionHandler(deps.Engine, positionHub(deps.Hub))
	marketH := handler.NewMarketHandler(deps.Feed, deps.Risk)

	// ── Session middleware (shared) ───────────────────────────────────────────
	sessionMW := middleware.SessionMiddleware([]byte(deps.Cfg.JWT.Secret))

	// ── Rate limiters ─────────────────────────────────────────────────────────
	sessionRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for session issuance
	tradeRL := middleware.RateLimitMiddleware(30)   // 30 req/s per IP for trading commands

	api := r.Group("/api")
	{
		// ── Session (public, strict rate limit) ──────────────────────────────
		api.POST("/session", sessionRL, sessionH.Create)

		// ── Markets (public) ─────────────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.GET("", marketH.List)
			markets.GET("/:symbol/history", marketH.History)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(sessionMW)
		{
			// Session introspection
			authed.GET("/session", sessionH.Me)

			// Account
			authed.GET("/account", accountH.Get)
			authed.GET("/account/journal", accountH.Journal)

			// Positions
			positions := authed.Group("/positions")
			positions.Use(tradeRL)
			{
				positions.POST("", positionH.Open)
				positions.GET("", positionH.List)
				positions.GET("/closed", positionH.ListClosed)
				positions.DELETE("/:id", positionH.Close)
				positions.DELETE("", positionH.CloseAll)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// positionHub returns nil as the handler interface when no hub is wired,
// so a typed nil pointer never slips into an interface value.
func positionHub(hub *ws.Hub) handler.PositionBroadcaster {
	if hub == nil {
		return nil
	}
	return hub
}

// healthHandler reports liveness plus per-exchange feed freshness when the
// live feed is in use.
func healthHandler(feed price.Feed) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{"status": "ok"}
		if lf, ok := feed.(*price.LiveFeed); ok {
			resp["exchanges"] = lf.ExchangeStatus()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured ones.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() || len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

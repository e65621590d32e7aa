package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/safemap/internal/pkg/metrics"
)

const (
	requestTimeout = 15 * time.Second
	openAPIPath    = "api/openapi.yaml"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Per IP. Zoom and pan arrive in bursts.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", APIVersion)
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Liveness and readiness skip the timeout wrapper.
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	with := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }

	maps := v1.Group("/maps")
	maps.Post("/", with(OpenMapHandler(deps)))
	maps.Get("/:id", with(GetMapHandler(deps)))
	maps.Delete("/:id", with(CloseMapHandler(deps)))
	maps.Post("/:id/zoom-in", with(ZoomInHandler(deps)))
	maps.Post("/:id/zoom-out", with(ZoomOutHandler(deps)))
	maps.Post("/:id/reset", with(ResetViewHandler(deps)))
	maps.Post("/:id/pan", with(PanHandler(deps)))
	maps.Put("/:id/layer", with(SetLayerHandler(deps)))
	maps.Put("/:id/selection", with(SelectHandler(deps)))
	maps.Delete("/:id/selection", with(DeselectHandler(deps)))
	maps.Get("/:id/geojson", with(MapGeoJSONHandler(deps)))

	v1.Get("/entities", with(ListEntitiesHandler(deps)))

	system := v1.Group("/system")
	system.Get("/health", with(SystemHealthHandler(deps)))
	system.Post("/health/refresh", with(RefreshHealthHandler(deps)))
	system.Get("/events", with(SystemEventsHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, openAPIPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}

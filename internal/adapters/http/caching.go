package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type cacheRule struct {
	prefix string
	value  string
}

// cacheRules are matched in order; the first prefix that matches wins.
// Map sessions and health readings change on every gesture or tick, so
// they are never cached.
var cacheRules = []cacheRule{
	{"/v1/maps", "no-store"},
	{"/v1/system", "no-store"},
	{"/v1/health", "public, max-age=10"},
	{"/v1/ready", "public, max-age=10"},
	{"/v1/entities", "public, max-age=60"},
	{"/metrics", "no-cache"},
	{"/graphql", "private, max-age=0"},
	{"/docs", "public, max-age=3600"},
}

// CachingMiddleware sets a default Cache-Control header on GET responses
// when the handler did not set one itself.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if c.Method() != fiber.MethodGet || len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}

		path := c.Path()
		for _, r := range cacheRules {
			if strings.HasPrefix(path, r.prefix) {
				c.Set(fiber.HeaderCacheControl, r.value)
				break
			}
		}
		return err
	}
}

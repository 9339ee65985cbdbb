package handlers

import (
	"github.com/andesco/sc-proxy/pkg/proxy"

	"github.com/gofiber/fiber/v2"
)

// Proxy is a Fiber handler that answers every request through the forwarder.
// The path is ignored; only the method and the query string matter.
func Proxy(f *proxy.Forwarder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := proxy.NewRequest(c.Method(), string(c.Request().URI().QueryString()))

		resp := f.Handle(c.UserContext(), req)

		for key, values := range resp.Header {
			for _, value := range values {
				c.Set(key, value)
			}
		}

		return c.Status(resp.StatusCode).Send(resp.Body)
	}
}

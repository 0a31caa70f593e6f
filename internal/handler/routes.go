package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
//
// The gateway is registered as a catch-all rather than at its route: the
// admission contract decides method before path (a DELETE to any path is 405,
// not 404), which a per-route registration cannot express. Operational
// endpoints are static routes and take precedence over the catch-all.
func RegisterRoutes(e *echo.Echo, gw *GatewayHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/gateway/status", health.Status)

	e.Any("/*", gw.Handle)
}

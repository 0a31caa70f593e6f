package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chat-gateway-go/internal/model"
	"chat-gateway-go/internal/service"
)

// hopByHopResponseHeaders are connection properties, not payload; relaying
// them would corrupt the response toward the client. Everything else passes
// through untouched.
var hopByHopResponseHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Trailer":           true,
	"Te":                true,
}

// GatewayHandler runs the admission pipeline on every request that reaches
// the catch-all route and relays admitted requests to the upstream.
type GatewayHandler struct {
	service *service.GatewayService
	logger  *slog.Logger
}

// NewGatewayHandler creates a GatewayHandler.
func NewGatewayHandler(svc *service.GatewayService, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		service: svc,
		logger:  logger.With("component", "gateway_handler"),
	}
}

// Handle admits or rejects the request and, on admission, forwards it and
// streams the upstream response back verbatim. Every code path terminates in
// a well-formed response; nothing propagates to echo's error handler.
func (h *GatewayHandler) Handle(c echo.Context) error {
	req := c.Request()

	if err := h.service.Admit(req.Method, req.URL.Path, req.Header); err != nil {
		return h.reject(c, err)
	}

	resp, err := h.service.Forward(&model.GatewayRequest{
		Ctx:    req.Context(),
		Header: req.Header,
		Body:   req.Body,
	})
	if err != nil {
		// The transport failure's detail stays on the server side; the
		// caller only ever sees the fixed 502 body.
		h.logger.Error("upstream request failed", "err", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Bad Gateway"})
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		if hopByHopResponseHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (e.g. client disconnect, network error), the HTTP status
	// code has already been sent, so the client receives a truncated
	// response with the original status. This is an inherent trade-off of
	// streaming proxies — we log the error for observability.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body", "err", err)
	}

	return nil
}

// reject maps an admission error to its fixed status and single-key JSON
// body. The bodies deliberately carry no request echo and no diagnostic
// detail; in particular all credential failures share one indistinguishable
// response.
func (h *GatewayHandler) reject(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrMethodNotAllowed):
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": "Method Not Allowed"})
	case errors.Is(err, service.ErrPathNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not Found"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "Bad Gateway"})
}

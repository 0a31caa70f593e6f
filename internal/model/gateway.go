// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// GatewayRequest represents an admitted client request to be forwarded upstream.
type GatewayRequest struct {
	Ctx    context.Context
	Header http.Header
	Body   io.ReadCloser
}

// GatewayResponse represents the upstream response to be streamed back.
type GatewayResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

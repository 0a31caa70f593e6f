// Package service implements the gateway admission and forwarding logic.
package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"chat-gateway-go/internal/client"
	"chat-gateway-go/internal/config"
	"chat-gateway-go/internal/model"
)

// ChatCompletionsPath is the single route the gateway admits and forwards.
const ChatCompletionsPath = "/v1/chat/completions"

// bearerPrefix is the required Authorization scheme, trailing space included.
const bearerPrefix = "Bearer "

// defaultContentType is sent upstream when the client omits Content-Type.
const defaultContentType = "application/json"

// Admission rejections, in pipeline order. The handler maps each to its fixed
// HTTP status and body; no further detail is ever attached.
var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrPathNotFound     = errors.New("path not found")
	ErrUnauthorized     = errors.New("unauthorized")
)

// GatewayService applies the admission pipeline and forwards admitted
// requests to the upstream chat-completion service.
type GatewayService struct {
	client     *client.UpstreamClient
	cfg        *config.Config
	logger     *slog.Logger
	forwardURL string
}

// NewGatewayService creates a GatewayService.
func NewGatewayService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*GatewayService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + ChatCompletionsPath

	return &GatewayService{
		client:     c,
		cfg:        cfg,
		logger:     logger.With("component", "gateway_service"),
		forwardURL: u.String(),
	}, nil
}

// Admit applies the admission checks in fixed order: method, then path, then
// credential. The first failing check wins; later checks are not evaluated.
func (s *GatewayService) Admit(method, path string, header http.Header) error {
	if method != http.MethodPost {
		return ErrMethodNotAllowed
	}
	if path != ChatCompletionsPath {
		return ErrPathNotFound
	}
	if !s.credentialOK(header.Get("Authorization")) {
		return ErrUnauthorized
	}
	return nil
}

// credentialOK reports whether the Authorization header value carries the
// expected bearer credential. A missing header, a non-Bearer scheme, an empty
// token and a mismatched token all fail identically; the caller can never
// tell which check tripped.
func (s *GatewayService) credentialOK(authorization string) bool {
	token, ok := strings.CutPrefix(authorization, bearerPrefix)
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Auth.Token)) == 1
}

// Forward sends an admitted request to the upstream chat-completion service
// and returns its response. The caller is responsible for closing the
// response body. Any upstream status code, including 4xx/5xx, is a successful
// forward; only transport-level failures return an error.
func (s *GatewayService) Forward(gr *model.GatewayRequest) (*model.GatewayResponse, error) {
	header := forwardHeaders(gr.Header)

	s.logger.Debug("forwarding request", "url", s.forwardURL)

	resp, err := s.client.Post(gr.Ctx, s.forwardURL, header, gr.Body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}
	return resp, nil
}

// forwardHeaders builds the upstream header set: Content-Type only, copied
// from the inbound request or defaulted. Authorization and every other
// inbound header stay behind.
func forwardHeaders(src http.Header) http.Header {
	ct := src.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	dst := make(http.Header)
	dst.Set("Content-Type", ct)
	return dst
}

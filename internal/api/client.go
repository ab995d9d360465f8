// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigchat/internal/config"
)

// Endpoint paths relative to the resolved base URL.
const (
	chatCompletionsPath = "/chat/completions"
	modelsPath          = "/models"
	healthPath          = "/health"
)

const (
	// DefaultTimeout bounds non-streaming requests on the shared client.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	userAgent = "rigchat/0.3.0"
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client with connection pooling for all plain requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests (no timeout,
	// context-controlled).
	// PERFORMANCE: Connection pooling for streaming requests.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		// No timeout for streaming - controlled via context
	}
)

// ============================================================================
// CLIENT
// ============================================================================

// Client talks to one OpenAI-compatible chat server. It is safe for
// concurrent use; per-request state lives in the decoder, not here.
type Client struct {
	cfg          *config.Config
	logger       *log.Logger
	sink         StateSink
	manager      *RequestManager
	limiter      *rate.Limiter
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a client for the server described by cfg.
func NewClient(cfg *config.Config) *Client {
	c := &Client{
		cfg:          cfg,
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
	}
	if cfg != nil && cfg.Server.RateLimitRPS > 0 {
		burst := int(cfg.Server.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), burst)
	}
	return c
}

// WithLogger sets the logger for request diagnostics.
func (c *Client) WithLogger(logger *log.Logger) *Client {
	c.logger = logger
	return c
}

// WithStateSink routes live processing updates to sink during streaming.
func (c *Client) WithStateSink(sink StateSink) *Client {
	c.sink = sink
	return c
}

// WithRequestManager keys every SendChatCompletion through mgr, so a resend
// on the same conversation cancels the request already in flight.
func (c *Client) WithRequestManager(mgr *RequestManager) *Client {
	c.manager = mgr
	return c
}

// WithHTTPClients overrides the shared transports. Intended for tests.
func (c *Client) WithHTTPClients(plain, streaming *http.Client) *Client {
	if plain != nil {
		c.httpClient = plain
	}
	if streaming != nil {
		c.streamClient = streaming
	}
	return c
}

// BaseURL returns the resolved server base.
func (c *Client) BaseURL() string {
	return c.cfg.Server.Resolve()
}

// ============================================================================
// CHAT COMPLETIONS
// ============================================================================

// SendChatCompletion issues one chat completion and drives cb with the
// response. convID keys cancellation and live state updates; empty falls
// back to the shared default key.
//
// The request body is rebuilt from cfg and opts on every call. A 400
// response is retried once after applying the configured compatibility
// rules, and only when a rule actually changed the body. Cancellation
// through the request manager (or the caller's ctx) aborts quietly: no
// callback fires and the returned error is nil.
func (c *Client) SendChatCompletion(ctx context.Context, convID string, messages []ChatMessage, opts RequestOptions, cb StreamCallbacks) error {
	if c.manager != nil {
		var finish func()
		ctx, finish = c.manager.Begin(ctx, convID)
		defer finish()
	}
	if c.cfg.Server.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.Server.TimeoutSecs)*time.Second)
		defer cancel()
	}

	body, err := BuildRequest(c.cfg, messages, opts, c.logger)
	if err != nil {
		return c.deliverError(ctx, cb, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.deliverError(ctx, cb, classifyTransportError(err))
		}
	}

	url := c.cfg.Server.Resolve() + chatCompletionsPath
	startedAt := time.Now()

	payload, err := body.Marshal()
	if err != nil {
		return c.deliverError(ctx, cb, fmt.Errorf("marshal request: %w", err))
	}

	resp, errBody, err := c.postChat(ctx, url, payload, opts.Stream)
	if err != nil && c.shouldRetryCompat(err, errBody, body) {
		retryPayload, merr := body.Marshal()
		if merr != nil {
			return c.deliverError(ctx, cb, fmt.Errorf("marshal request: %w", merr))
		}
		resp, errBody, err = c.postChat(ctx, url, retryPayload, opts.Stream)
	}
	if err != nil {
		return c.deliverError(ctx, cb, err)
	}
	defer resp.Body.Close()

	disableReasoning := opts.DisableReasoningFormat || c.cfg.Chat.DisableReasoningFormat

	if opts.Stream {
		dec := NewStreamDecoder(convID, cb).
			WithStateSink(c.sink).
			WithLogger(c.logger).
			WithReasoningFormatDisabled(disableReasoning)
		if err := dec.Run(ctx, resp.Body); err != nil {
			return c.deliverError(ctx, cb, err)
		}
		return nil
	}

	raw, err := readResponse(resp)
	if err != nil {
		return c.deliverError(ctx, cb, err)
	}
	if err := FinalizeResponse(ctx, raw, disableReasoning, startedAt, cb); err != nil {
		return c.deliverError(ctx, cb, err)
	}
	return nil
}

// shouldRetryCompat reports whether a failed request earned its single
// compatibility retry, mutating body in place when a rule applies. Only a
// 400 qualifies, and only when a rule matched the error text and removed or
// renamed a field the request actually carried.
func (c *Client) shouldRetryCompat(err error, errBody []byte, body RequestBody) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Kind != KindServer || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	if !applyCompatRules(c.cfg.Retry.CompatRules, string(errBody), body) {
		return false
	}
	if c.logger != nil {
		c.logger.Info("retrying request with compatibility fixes", "status", apiErr.StatusCode)
	}
	return true
}

// postChat issues one POST and validates the status. On a non-2xx response
// it returns the raw error body alongside the classified error so the
// caller can match compatibility rules against it.
func (c *Client) postChat(ctx context.Context, url string, payload []byte, streaming bool) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}

	client := c.httpClient
	if streaming {
		client = c.streamClient
	}
	resp, err := client.Do(req)

	// SECURITY: Clear Authorization header immediately after request to
	// prevent logging
	req.Header.Del("Authorization")

	if err != nil {
		return nil, nil, classifyTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readResponse(resp)
		resp.Body.Close()
		return nil, body, newStatusError(resp.StatusCode, body)
	}
	return resp, nil, nil
}

// deliverError surfaces err through OnError unless the request was
// cancelled, in which case nothing fires and nothing is returned.
func (c *Client) deliverError(ctx context.Context, cb StreamCallbacks, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	if cb.OnError != nil {
		cb.OnError(err)
	}
	return err
}

// ============================================================================
// MODELS AND HEALTH
// ============================================================================

// ListModels fetches the models the server offers.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	url := c.cfg.Server.Resolve() + modelsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode, body)
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, newParseError("failed to parse models response", err)
	}
	return models.Data, nil
}

// Health probes the server's health endpoint. A nil return means the
// server is up and ready.
func (c *Client) Health(ctx context.Context) error {
	url := c.cfg.Server.Resolve() + healthPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := readResponse(resp)
		return newStatusError(resp.StatusCode, body)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if key := strings.TrimSpace(c.cfg.Server.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// readResponse reads a body with the size limit applied.
// SECURITY: Read response with size limit to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

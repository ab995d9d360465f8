// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ============================================================================
// ERROR KINDS
// ============================================================================

// ErrorKind classifies request failures for callers that present them
// differently (retry banners, toasts, exit codes).
type ErrorKind int

const (
	// KindNetwork is a transport failure such as connection refused.
	KindNetwork ErrorKind = iota + 1
	// KindTimeout is a transport-level timeout.
	KindTimeout
	// KindServer is an HTTP 400: the server understood and rejected the
	// request. Eligible for the one-shot compatibility retry.
	KindServer
	// KindHTTP is any other non-2xx status.
	KindHTTP
	// KindParse is malformed JSON in a non-streaming response body.
	KindParse
	// KindEmptyResponse is a success status carrying neither content nor
	// tool calls.
	KindEmptyResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	case KindEmptyResponse:
		return "empty_response"
	default:
		return "unknown"
	}
}

// ============================================================================
// ERROR TYPE
// ============================================================================

// Error is the typed failure surfaced by the client and via OnError.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an api error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

// classifyTransportError maps a transport failure to a timeout or network
// error with a user-readable message.
func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}

	return &Error{
		Kind:    KindNetwork,
		Message: fmt.Sprintf("cannot reach server: %v", err),
		Err:     err,
	}
}

// newStatusError builds the error for a non-2xx response. 400 is a server
// rejection; everything else is a generic HTTP error.
func newStatusError(status int, body []byte) *Error {
	kind := KindHTTP
	if status == http.StatusBadRequest {
		kind = KindServer
	}
	return &Error{
		Kind:       kind,
		StatusCode: status,
		Message:    errorMessageFromBody(status, body),
	}
}

// errorMessageFromBody extracts a display message from an error response:
// error.message, then message, then the raw body, then a generic fallback.
func errorMessageFromBody(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil {
			if envelope.Error.Message != "" {
				return envelope.Error.Message
			}
			if envelope.Message != "" {
				return envelope.Message
			}
		}
		return trimmed
	}
	return fmt.Sprintf("Server error (%d): %s", status, http.StatusText(status))
}

func newParseError(what string, err error) *Error {
	return &Error{
		Kind:    KindParse,
		Message: fmt.Sprintf("%s: %v", what, err),
		Err:     err,
	}
}

func newEmptyResponseError() *Error {
	return &Error{Kind: KindEmptyResponse, Message: "no response received"}
}

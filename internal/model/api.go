package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Field length limits for player-supplied profile fields.
const (
	MaxPlayerNameLen = 40
	MaxSessionIDLen  = 64
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// ChatRequest is the request body for the chat endpoints.
type ChatRequest struct {
	Messages  []Message `json:"messages"`
	Tools     []string  `json:"tools,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// ChatResponse is the response body for POST /v1/chat and POST /v1/game/chat.
type ChatResponse struct {
	SessionID string       `json:"session_id"`
	Message   Message      `json:"message"`
	Outcome   string       `json:"outcome"`
	Rounds    int          `json:"rounds"`
	Events    []GameEvent  `json:"events"`
	State     *PlayerState `json:"state,omitempty"`
}

// NewGameRequest is the request body for POST /v1/game/new.
type NewGameRequest struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// Validate checks per-field limits on a new game request.
func (r NewGameRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLen {
		return fmt.Errorf("name exceeds maximum length of %d characters", MaxPlayerNameLen)
	}
	if strings.ContainsAny(name, "<>") {
		return fmt.Errorf("name must not contain markup")
	}
	return nil
}

// AchievementStatus is a catalog entry annotated with the caller's progress.
type AchievementStatus struct {
	Achievement
	Unlocked bool `json:"unlocked"`
}

// ToolSchema is the model-facing description of one catalog tool.
type ToolSchema struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	ParameterSchema map[string]any `json:"parameters"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Store     string `json:"store"`
	Model     string `json:"model"`
	SSEBroker string `json:"sse_broker,omitempty"`
	Uptime    int64  `json:"uptime_seconds"`
}

// Package logger provides request and response logging middleware.
package logger

import (
	"log/slog"

	"github.com/sweetpotato0/chatflow/middleware"
	"github.com/sweetpotato0/chatflow/pkg/logging"
)

// RequestLogger logs incoming requests
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware. A nil logger
// falls back to the package default.
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	if logger == nil {
		logger = logging.WithComponent("middleware")
	}
	return &RequestLogger{logger: logger}
}

// Name returns the middleware name
func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

// Execute logs the request
func (m *RequestLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	m.logger.Info("conversation input", "input", ctx.Input, "history", len(ctx.Messages))
	return next(ctx)
}

// ResponseLogger logs outgoing responses
type ResponseLogger struct {
	logger *slog.Logger
}

// NewResponseLogger creates a response logging middleware. A nil logger
// falls back to the package default.
func NewResponseLogger(logger *slog.Logger) *ResponseLogger {
	if logger == nil {
		logger = logging.WithComponent("middleware")
	}
	return &ResponseLogger{logger: logger}
}

// Name returns the middleware name
func (m *ResponseLogger) Name() string {
	return "ResponseLogger"
}

// Execute logs the response
func (m *ResponseLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	err := next(ctx)
	if ctx.Response != nil {
		m.logger.Info("conversation output", "output", ctx.Response.Content)
	} else if err != nil {
		m.logger.Warn("conversation failed", "error", err)
	}
	return err
}

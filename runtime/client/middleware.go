package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/pgweave/pgweave/internal/debug"
)

// QueryEvent describes one statement execution seen by middleware.
// Duration, End and Error are populated once next returns.
type QueryEvent struct {
	Text     string
	Args     []interface{}
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware intercepts statement execution. Implementations call next
// to continue the chain.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// runMiddleware executes fn wrapped in the middleware chain.
func runMiddleware(ctx context.Context, middlewares []Middleware, text string, args []interface{}, fn func() error) error {
	if len(middlewares) == 0 {
		return fn()
	}

	event := &QueryEvent{Text: text, Args: args, Start: time.Now()}

	var next func() error
	index := 0

	next = func() error {
		if index >= len(middlewares) {
			err := fn()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}
		mw := middlewares[index]
		index++
		return mw(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware logs every statement through log. A nil log falls
// back to the debug logger.
func LoggingMiddleware(log *slog.Logger) Middleware {
	if log == nil {
		log = debug.Component("client")
	}
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil {
			log.Debug("query failed", "text", event.Text, "err", err)
			return err
		}
		log.Debug("query", "text", event.Text, "duration", event.Duration)
		return nil
	}
}

// TimingMiddleware reports each statement's execution time.
func TimingMiddleware(onTiming func(text string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Text, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware reports failed statements.
func ErrorMiddleware(onError func(text string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Text, err)
		}
		return err
	}
}

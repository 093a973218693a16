package natsx

import (
	"context"

	"RPChat/logger"
	"RPChat/tools/errs"

	"go.uber.org/zap"
)

// Message is a received NATS message detached from the connection buffers.
type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// Handler processes one message.
type Handler func(ctx context.Context, msg Message) error

// Middleware wraps a Handler (logging, dedupe, recovery).
type Middleware func(Handler) Handler

// Chain applies mws so that mws[0] is outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a panicking handler into an error.
func Recover() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
					logger.Error("[natsx] handler panic", zap.String("subject", msg.Subject), zap.Error(err))
				}
			}()
			return next(ctx, msg)
		}
	}
}

// Logging logs handler failures.
func Logging() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			err := next(ctx, msg)
			if err != nil {
				logger.Warn("[natsx] handle failed", zap.String("subject", msg.Subject), zap.Error(err))
			}
			return err
		}
	}
}

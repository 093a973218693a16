package safe

import (
	"RPChat/logger"
	"RPChat/tools/errs"

	"go.uber.org/zap"
)

// Go starts f on a new goroutine that recovers from panic,
// so that a failing background job doesn't crash the gateway.
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover logs a recovered panic. Use it as `defer safe.Recover("x")`.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Error("[safe] panic recovered", zap.String("job", name), zap.Error(errs.ErrPanic(r)))
	}
}

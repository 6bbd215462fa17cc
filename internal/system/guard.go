package system

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// guard runs fn for one entity and recovers a panic, so one broken entity
// costs only its own update for the tick.
func guard(log *zap.Logger, phase, kind string, index int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("entity panic recovered",
				zap.String("phase", phase),
				zap.String("entity", kind),
				zap.Int("index", index),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	fn()
}

package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTimeout bounds one background submission.
const DefaultTimeout = 10 * time.Second

// Dispatch submits rec on its own goroutine with a fresh timeout. Errors
// are logged and never returned to the caller. The channel closes once
// the attempt has finished.
func Dispatch(sink Sink, credential string, rec Record, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := sink.Submit(ctx, credential, rec); err != nil {
			slog.Warn("telemetry submit failed", "id", rec.ID, "language", rec.Language, "error", err)
			return
		}
		slog.Debug("telemetry submitted", "id", rec.ID, "time_taken", rec.TimeTaken)
	}()

	return done
}

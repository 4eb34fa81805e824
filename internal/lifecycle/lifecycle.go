// Package lifecycle tracks process-wide shutdown state so the health
// endpoint can steer traffic away before the listener closes.
package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown marks the process as draining. main sets the flag on
// SIGINT/SIGTERM before stopping the refresh scheduler; /health reports
// shutting-down with a 503 while it holds.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining and should stop
// receiving new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

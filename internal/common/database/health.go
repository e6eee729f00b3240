// internal/common/database/health.go
package database

import (
	"context"
	"time"
)

// Pinger is a backing service the readiness probe checks.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// CheckAll pings every dependency with a shared deadline and returns the
// failures keyed by name. An empty map means ready.
func CheckAll(ctx context.Context, timeout time.Duration, deps ...Pinger) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	failures := make(map[string]string)
	for _, dep := range deps {
		if err := dep.Ping(ctx); err != nil {
			failures[dep.Name()] = err.Error()
		}
	}
	return failures
}

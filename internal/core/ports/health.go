package ports

import "context"

// HealthChecker is one dependency reported by GET /health. The ledger is
// unhealthy when any checker fails.
type HealthChecker interface {
	// Ping returns nil when the dependency can serve ledger requests.
	Ping(ctx context.Context) error
	// Name is the key under "dependencies" in the health payload,
	// e.g. "ledger_db", "ledger_memory", "redis".
	Name() string
}

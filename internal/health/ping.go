package health

import "context"

// HealthPinger is implemented by components with a native liveness check.
// HealthPing must return nil when the component is usable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// CheckFunc checks one dependency and returns nil when it is usable.
type CheckFunc func(ctx context.Context) error

// PingCheck adapts a HealthPinger.
func PingCheck(p HealthPinger) CheckFunc { return p.HealthPing }

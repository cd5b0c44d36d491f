package store

import (
	"context"
	"errors"

	"github.com/plantpal/plantpal/internal/health"
	"github.com/plantpal/plantpal/internal/model"
)

// healthCheckUser never owns data.
const healthCheckUser = "__health_check__"

// HealthCheck returns a health check for s. Backends with a native ping use it;
// others are read for a user that never exists.
func HealthCheck(s Store) health.CheckFunc {
	if p, ok := s.(health.HealthPinger); ok {
		return health.PingCheck(p)
	}
	return func(ctx context.Context) error {
		_, err := s.Stats().Get(ctx, healthCheckUser)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
		return nil
	}
}

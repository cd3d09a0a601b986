// Package validation checks that the services the deployment depends on are
// reachable before the API starts taking traffic.
package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nostrvine/backend/internal/logger"
	"go.uber.org/zap"
)

// Known service names
const (
	ServiceDatabase = "database"
	ServiceRedis    = "redis"
	ServiceGorse    = "gorse"
)

// DefaultCheckTimeout bounds each service check
const DefaultCheckTimeout = 10 * time.Second

// Check probes one service
type Check func(ctx context.Context) error

// ServiceValidator validates the services a deployment marks as required
type ServiceValidator struct {
	requiredServices []string
	checks           map[string]Check
	timeout          time.Duration
}

// NewServiceValidator creates a validator for required using the given checks
func NewServiceValidator(required []string, checks map[string]Check) *ServiceValidator {
	return &ServiceValidator{
		requiredServices: required,
		checks:           checks,
		timeout:          DefaultCheckTimeout,
	}
}

// ValidateServices runs the check of every required service and stops at
// the first failure. A required service with no check is an error.
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.requiredServices) == 0 {
		logger.Log.Info("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services",
		zap.Strings("services", sv.requiredServices),
	)

	for _, name := range sv.requiredServices {
		check, ok := sv.checks[name]
		if !ok {
			return fmt.Errorf("required service %q is not configured (known: %s)", name, strings.Join(sv.known(), ", "))
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			logger.Log.Error("Required service validation failed",
				zap.String("service", name),
				zap.Error(err),
			)
			return fmt.Errorf("required service '%s' validation failed: %w", name, err)
		}

		logger.Log.Info("Service validated successfully", zap.String("service", name))
	}

	logger.Log.Info("All required services validated successfully")
	return nil
}

func (sv *ServiceValidator) known() []string {
	names := make([]string, 0, len(sv.checks))
	for name := range sv.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseRequiredServices splits a comma separated list, lowercasing names and
// dropping blanks and duplicates
func ParseRequiredServices(raw string) []string {
	var required []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		required = append(required, name)
	}
	return required
}

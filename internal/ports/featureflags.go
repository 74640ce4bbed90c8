package ports

import (
	"context"
	"strconv"
)

// Feature flag names understood by the application layer.
const (
	// FlagAutoUnblock moves blocked dependents back to pending once their
	// last open dependency completes.
	FlagAutoUnblock = "auto-unblock"

	// FlagForceLayout allows the force-directed graph layout, which is
	// quadratic in the number of nodes.
	FlagForceLayout = "force-layout"
)

// FeatureFlags defines the contract for feature flag evaluation.
// This port allows the application to check feature enablement without
// knowing the underlying provider.
//
// Example usage:
//
//	if flags.IsEnabled(ctx, ports.FlagAutoUnblock, true) {
//	    s.unblockDependents(ctx, task)
//	}
type FeatureFlags interface {
	// IsEnabled checks if a boolean feature flag is enabled.
	// Returns defaultValue if the flag doesn't exist or evaluation fails.
	IsEnabled(ctx context.Context, flag string, defaultValue bool) bool

	// GetInt retrieves an integer feature flag value.
	// Returns defaultValue if the flag doesn't exist or evaluation fails.
	GetInt(ctx context.Context, flag string, defaultValue int) int
}

// StaticFlags is a FeatureFlags backed by a fixed map, typically loaded from config.
type StaticFlags map[string]any

// IsEnabled implements FeatureFlags.
func (f StaticFlags) IsEnabled(_ context.Context, flag string, defaultValue bool) bool {
	switch v := f[flag].(type) {
	case bool:
		return v
	case string:
		// Flags set through the environment arrive as strings.
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return defaultValue
}

// GetInt implements FeatureFlags.
func (f StaticFlags) GetInt(_ context.Context, flag string, defaultValue int) int {
	switch v := f[flag].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

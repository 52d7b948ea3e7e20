package app

import (
	"dispatch/internal/config"
	"dispatch/internal/provider"
)

// NewDistanceProvider dials the external routing service used by the
// Distance Oracle for cache misses (spec 4.1).
func NewDistanceProvider(cfg config.ProviderConfig) (*provider.GRPCClient, error) {
	return provider.Dial(cfg.Target)
}

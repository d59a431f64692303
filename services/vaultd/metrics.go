package vaultd

import "github.com/ogazboiz/sonic-rush/observability"

// Metrics exposes Prometheus collectors for vaultd instrumentation.
type Metrics = observability.VaultdMetrics

// NewMetrics returns the lazily initialised metrics registry.
func NewMetrics() *Metrics { return observability.Vaultd() }

// Package stage defines the ordered stage registry of a kernel build and the
// orchestrator that walks it.
//
// It is intentionally split into:
//   - Immutable configuration (Registry): declared stages + stable RegistryHash
//   - Mutable execution state (ExecutionState): per-stage statuses for one run
//
// Build order is declared, not inferred: a later stage may use symbols from
// every earlier stage's artifact, so stages run strictly one after another and
// the first hard failure skips everything after it.
//
// Concurrent runs against the same output directory are unsupported; they
// race on archive paths.
package stage

// Package core defines the shared language of the livef1 system.
//
// This package contains:
//   - Lake vocabulary (Level, TableMetadata)
//   - Error taxonomy (sentinels and typed errors)
//   - Service interfaces (Adapter, Store)
//   - Run history entities (Run, TableRun)
//   - Configuration types (TargetConfig, AdapterConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

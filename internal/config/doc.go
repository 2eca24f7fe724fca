// Package config reads run-level settings from the environment and loads
// declarative transformer pipelines from YAML or CUE files.
//
// Environment variables:
//
//	GOLDEN_UPDATE         record snapshots instead of comparing (bool)
//	GOLDEN_RAW            also record untransformed values (bool)
//	GOLDEN_LEGACY_REPORT  render mismatches in the legacy format (bool)
//	GOLDEN_LOCK           lock snapshot files while flushing (bool)
//	GOLDEN_DIR            snapshot directory (default testdata/snapshots)
//	GOLDEN_PIPELINE       pipeline file applied to every capture
//	DEBUG_SNAPSHOT        debug logging (bool)
package config

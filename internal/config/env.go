package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	EnvUpdate       = "GOLDEN_UPDATE"
	EnvRaw          = "GOLDEN_RAW"
	EnvLegacyReport = "GOLDEN_LEGACY_REPORT"
	EnvLock         = "GOLDEN_LOCK"
	EnvDir          = "GOLDEN_DIR"
	EnvPipeline     = "GOLDEN_PIPELINE"
	EnvDebug        = "DEBUG_SNAPSHOT"

	// DefaultDir is where snapshot files live, relative to the package
	// under test.
	DefaultDir = "testdata/snapshots"
)

// Config holds run-level settings.
type Config struct {
	Update       bool
	Raw          bool
	LegacyReport bool
	Lock         bool
	Debug        bool
	Dir          string
	PipelineFile string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{Dir: DefaultDir}
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load reads the configuration through lookup. Unset and empty variables
// keep their defaults; malformed booleans are errors naming the variable.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	bools := []struct {
		name string
		dst  *bool
	}{
		{EnvUpdate, &cfg.Update},
		{EnvRaw, &cfg.Raw},
		{EnvLegacyReport, &cfg.LegacyReport},
		{EnvLock, &cfg.Lock},
		{EnvDebug, &cfg.Debug},
	}
	for _, b := range bools {
		v, ok := lookupTrimmed(lookup, b.name)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: invalid boolean %q", b.name, v)
		}
		*b.dst = parsed
	}

	if v, ok := lookupTrimmed(lookup, EnvDir); ok {
		cfg.Dir = v
	}
	if v, ok := lookupTrimmed(lookup, EnvPipeline); ok {
		cfg.PipelineFile = v
	}
	return cfg, nil
}

func lookupTrimmed(lookup func(string) (string, bool), name string) (string, bool) {
	v, ok := lookup(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

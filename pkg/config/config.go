// Package config loads and validates DIMA run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the config file nor the environment set a value.
const (
	DefaultToleranceUnit      = "ppm"
	DefaultPPMTolerance       = 10.0
	DefaultPrecursorWindow    = 0.1
	DefaultMinMatchedPeaks    = 3
	DefaultTopNPeaks          = 10
	DefaultIntensityThreshold = 4000.0
	DefaultWorkers            = 1
	DefaultLogLevel           = "info"
)

// EnvPrefix prefixes every environment override, e.g. DIMA_PPM_TOLERANCE.
const EnvPrefix = "DIMA_"

// ErrInvalid marks configuration errors that must stop a run before it starts.
var ErrInvalid = errors.New("invalid configuration")

// Config is the configuration surface of a matching or reformatting run.
type Config struct {
	ToleranceUnit      string  `yaml:"tolerance_unit,omitempty"`
	PPMTolerance       float64 `yaml:"ppm_tolerance,omitempty"`
	PrecursorWindow    float64 `yaml:"precursor_window,omitempty"`
	MinMatchedPeaks    int     `yaml:"min_matched_peaks,omitempty"`
	TopNPeaks          int     `yaml:"top_n_peaks,omitempty"`
	IntensityThreshold float64 `yaml:"intensity_threshold,omitempty"`
	ScanStart          int     `yaml:"scan_start,omitempty"`
	ScanEnd            int     `yaml:"scan_end,omitempty"`
	Workers            int     `yaml:"workers,omitempty"`
	LogLevel           string  `yaml:"log_level,omitempty"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		ToleranceUnit:      DefaultToleranceUnit,
		PPMTolerance:       DefaultPPMTolerance,
		PrecursorWindow:    DefaultPrecursorWindow,
		MinMatchedPeaks:    DefaultMinMatchedPeaks,
		TopNPeaks:          DefaultTopNPeaks,
		IntensityThreshold: DefaultIntensityThreshold,
		Workers:            DefaultWorkers,
		LogLevel:           DefaultLogLevel,
	}
}

// Load reads the YAML file at path (if path is non-empty) over the defaults,
// then applies DIMA_* environment overrides. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	float := func(name string, dst *float64) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s%s: invalid number %q: %w", EnvPrefix, name, v, err)
		}
		*dst = f
		return nil
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: invalid integer %q: %w", EnvPrefix, name, v, err)
		}
		*dst = n
		return nil
	}

	str("TOLERANCE_UNIT", &c.ToleranceUnit)
	str("LOG_LEVEL", &c.LogLevel)
	for _, err := range []error{
		float("PPM_TOLERANCE", &c.PPMTolerance),
		float("PRECURSOR_WINDOW", &c.PrecursorWindow),
		float("INTENSITY_THRESHOLD", &c.IntensityThreshold),
		integer("MIN_MATCHED_PEAKS", &c.MinMatchedPeaks),
		integer("TOP_N_PEAKS", &c.TopNPeaks),
		integer("WORKERS", &c.Workers),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the matching parameters.
func (c *Config) Validate() error {
	var errs []string

	if !strings.EqualFold(c.ToleranceUnit, "ppm") {
		errs = append(errs, fmt.Sprintf("unsupported tolerance unit %q (only ppm)", c.ToleranceUnit))
	}
	if c.PPMTolerance <= 0 {
		errs = append(errs, "ppm_tolerance must be positive")
	}
	if c.PrecursorWindow <= 0 {
		errs = append(errs, "precursor_window must be positive")
	}
	if c.MinMatchedPeaks < 1 {
		errs = append(errs, "min_matched_peaks must be at least 1")
	}
	if c.TopNPeaks < 1 {
		errs = append(errs, "top_n_peaks must be at least 1")
	}
	if c.IntensityThreshold < 0 {
		errs = append(errs, "intensity_threshold must not be negative")
	}
	if c.Workers < 1 {
		errs = append(errs, "workers must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateScanRange checks the half-open scan range [ScanStart, ScanEnd).
func (c *Config) ValidateScanRange() error {
	if c.ScanStart < 0 || c.ScanEnd <= c.ScanStart {
		return fmt.Errorf("%w: scan range [%d, %d) is empty or negative", ErrInvalid, c.ScanStart, c.ScanEnd)
	}
	return nil
}

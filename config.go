package qrep

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything needed to run a sweep of repetition-code experiments.
type Config struct {
	Distances []int
	Trials    int
	Shots     int

	// Simulator noise
	ErrorRate        float64
	MeasurementError float64
	FailureRate      float64
	Seed             uint64

	Layout   string
	Register int
	Offset   int
	Stride   int

	MaxAttempts  int
	Backoff      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
	RateLimit    int
	RateRefill   time.Duration

	Parallelism int
	Verbose     bool
}

func NewConfig() *Config {
	m := DefaultModular()
	return &Config{
		Distances:        []int{3, 4, 5},
		Trials:           10,
		Shots:            1024,
		ErrorRate:        0.05,
		MeasurementError: 0.02,
		Seed:             1,
		Layout:           "dense",
		Register:         m.Register,
		Offset:           m.Offset,
		Stride:           m.Stride,
		MaxAttempts:      5,
		Backoff:          100 * time.Millisecond,
		MaxFailures:      5,
		ResetTimeout:     time.Second,
		RateRefill:       100 * time.Millisecond,
	}
}

/*
LoadConfig starts from NewConfig, loads the given .env files (a missing file is
not an error) and then applies any QREP_* environment variables.
*/
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := NewConfig()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var err error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && err == nil {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && err == nil {
			var n int
			if n, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("%s: %w", key, err)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && err == nil {
			var f float64
			if f, err = strconv.ParseFloat(v, 64); err != nil {
				err = fmt.Errorf("%s: %w", key, err)
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && err == nil {
			var d time.Duration
			if d, err = time.ParseDuration(v); err != nil {
				err = fmt.Errorf("%s: %w", key, err)
				return
			}
			*dst = d
		}
	}

	if v, ok := lookup("QREP_DISTANCES"); ok {
		if c.Distances, err = ParseDistances(v); err != nil {
			return fmt.Errorf("QREP_DISTANCES: %w", err)
		}
	}
	if v, ok := lookup("QREP_SEED"); ok {
		if c.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return fmt.Errorf("QREP_SEED: %w", err)
		}
	}
	if v, ok := lookup("QREP_VERBOSE"); ok {
		if c.Verbose, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("QREP_VERBOSE: %w", err)
		}
	}

	integer("QREP_TRIALS", &c.Trials)
	integer("QREP_SHOTS", &c.Shots)
	float("QREP_ERROR_RATE", &c.ErrorRate)
	float("QREP_MEASUREMENT_ERROR", &c.MeasurementError)
	float("QREP_FAILURE_RATE", &c.FailureRate)
	str("QREP_LAYOUT", &c.Layout)
	integer("QREP_REGISTER", &c.Register)
	integer("QREP_OFFSET", &c.Offset)
	integer("QREP_STRIDE", &c.Stride)
	integer("QREP_MAX_ATTEMPTS", &c.MaxAttempts)
	duration("QREP_BACKOFF", &c.Backoff)
	integer("QREP_MAX_FAILURES", &c.MaxFailures)
	duration("QREP_RESET_TIMEOUT", &c.ResetTimeout)
	integer("QREP_RATE_LIMIT", &c.RateLimit)
	duration("QREP_RATE_REFILL", &c.RateRefill)
	integer("QREP_PARALLELISM", &c.Parallelism)

	return err
}

// BuildLayout resolves the configured layout.
func (c *Config) BuildLayout() (Layout, error) {
	return ParseLayout(c.Layout, c.Register, c.Offset, c.Stride)
}

// Validate rejects configurations that cannot run, before anything executes.
func (c *Config) Validate() error {
	if len(c.Distances) == 0 {
		return errors.New("no code distances configured")
	}

	layout, err := c.BuildLayout()
	if err != nil {
		return err
	}

	if err := validateDistances(layout, c.Distances); err != nil {
		return err
	}

	if c.Trials <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTrials, c.Trials)
	}
	if c.Shots <= 0 {
		return fmt.Errorf("shots must be positive, got %d", c.Shots)
	}

	for name, p := range map[string]float64{
		"error rate":        c.ErrorRate,
		"measurement error": c.MeasurementError,
		"failure rate":      c.FailureRate,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, p)
		}
	}

	return nil
}

// ParseDistances parses a comma separated list such as "3,4,5".
func ParseDistances(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad distance %q: %w", part, err)
		}
		out = append(out, d)
	}
	return out, nil
}

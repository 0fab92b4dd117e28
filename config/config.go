// Package config gathers the settings shared by the snekgym commands.
//
// Values come from, in increasing priority: built-in defaults, a .env file,
// SNEKGYM_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/brensch/snekgym/convert"
	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/logging"
	"github.com/brensch/snekgym/rules"
)

// Config is the full runtime configuration.
type Config struct {
	BoardSize    int
	Encoding     string
	ImageScale   int
	StepLimit    int
	MaskReversal bool

	Seed     int64
	Episodes int
	Workers  int
	Policy   string
	MaxSteps int

	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	OutDir           string
	EpisodesPerFlush int

	LogLevel  string
	LogFormat string
}

// LoadDotEnv loads the first .env file found among paths. Missing files are
// not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

// FromEnv builds a Config from SNEKGYM_* variables, falling back to defaults.
func FromEnv() Config {
	return Config{
		BoardSize:    getEnvIntOrDefault("SNEKGYM_BOARD_SIZE", 12),
		Encoding:     getEnvOrDefault("SNEKGYM_ENCODING", string(convert.KindScalar)),
		ImageScale:   getEnvIntOrDefault("SNEKGYM_IMAGE_SCALE", convert.DefaultImageScale),
		StepLimit:    getEnvIntOrDefault("SNEKGYM_STEP_LIMIT", 0),
		MaskReversal: getEnvBoolOrDefault("SNEKGYM_MASK_REVERSAL", false),

		Seed:     int64(getEnvIntOrDefault("SNEKGYM_SEED", 0)),
		Episodes: getEnvIntOrDefault("SNEKGYM_EPISODES", 100),
		Workers:  getEnvIntOrDefault("SNEKGYM_WORKERS", 4),
		Policy:   getEnvOrDefault("SNEKGYM_POLICY", "random"),
		MaxSteps: getEnvIntOrDefault("SNEKGYM_MAX_STEPS", 10000),

		ListenAddr:   getEnvOrDefault("SNEKGYM_LISTEN", ":8090"),
		ReadTimeout:  getEnvDurationOrDefault("SNEKGYM_READ_TIMEOUT", 5*time.Minute),
		WriteTimeout: getEnvDurationOrDefault("SNEKGYM_WRITE_TIMEOUT", 10*time.Second),

		OutDir:           getEnvOrDefault("SNEKGYM_OUT_DIR", "data/episodes"),
		EpisodesPerFlush: getEnvIntOrDefault("SNEKGYM_EPISODES_PER_FLUSH", 50),

		LogLevel:  getEnvOrDefault("SNEKGYM_LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("SNEKGYM_LOG_FORMAT", string(logging.FormatText)),
	}
}

// Validate checks the settings every command depends on.
func (c Config) Validate() error {
	var errs []error
	if c.BoardSize < rules.MinBoardSize {
		errs = append(errs, fmt.Errorf("board size %d below minimum %d", c.BoardSize, rules.MinBoardSize))
	}
	if _, err := convert.ParseKind(c.Encoding); err != nil {
		errs = append(errs, err)
	}
	if c.ImageScale < 1 {
		errs = append(errs, fmt.Errorf("image scale must be >= 1, got %d", c.ImageScale))
	}
	if c.StepLimit < 0 {
		errs = append(errs, fmt.Errorf("step limit must be >= 0, got %d", c.StepLimit))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EnvConfig converts the engine-related settings. Call Validate first.
func (c Config) EnvConfig() env.Config {
	kind, _ := convert.ParseKind(c.Encoding)
	return env.Config{
		BoardSize:    c.BoardSize,
		Encoding:     kind,
		ImageScale:   c.ImageScale,
		StepLimit:    c.StepLimit,
		MaskReversal: c.MaskReversal,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kibbyd/rps-adaptive/internal/predictor"
	"github.com/kibbyd/rps-adaptive/internal/remote"
	"github.com/kibbyd/rps-adaptive/internal/stability"
)

// #region types
// Classifier names accepted by RPS_CLASSIFIER.
const (
	ClassifierLocal  = "local"
	ClassifierRemote = "remote"
)

// Config is the process configuration for the rps tools.
type Config struct {
	Env        string // "development" | "production"
	LogFile    string
	ModelPath  string
	DBPath     string
	HealthAddr string // empty disables the gRPC health server

	Predictor predictor.Config
	Stability stability.Config

	CameraEnabled bool
	CameraDevice  string // device index or a video file/URL
	Classifier    string
	Remote        remote.Config
}

// Production reports whether RPS_ENV selects production logging.
func (c Config) Production() bool {
	return c.Env == "production"
}

// #endregion types

// #region load
// Load reads .env (if present) and then the environment. Malformed numeric
// values fall back to their defaults.
func Load() Config {
	// a missing .env is the normal case
	_ = godotenv.Load()

	return Config{
		Env:        envOr("RPS_ENV", "development"),
		LogFile:    os.Getenv("RPS_LOG_FILE"),
		ModelPath:  envOr("RPS_MODEL_PATH", "patrones.json"),
		DBPath:     envOr("RPS_DB", "rps_rounds.db"),
		HealthAddr: os.Getenv("RPS_HEALTH_ADDR"),
		Predictor: predictor.Config{
			Depth: envInt("RPS_MEMORY_DEPTH", predictor.DefaultDepth),
			Seed:  int64(envInt("RPS_SEED", 0)),
		},
		Stability: stability.Config{
			StableRequired: envInt("RPS_STABLE_REQUIRED", stability.DefaultConfig().StableRequired),
			Cooldown:       envDuration("RPS_COOLDOWN", stability.DefaultConfig().Cooldown),
		},
		CameraEnabled: envBool("RPS_CAMERA_ENABLED", true),
		CameraDevice:  envOr("RPS_CAMERA_DEVICE", "0"),
		Classifier:    strings.ToLower(envOr("RPS_CLASSIFIER", ClassifierLocal)),
		Remote:        remote.DefaultConfig(),
	}
}

// #endregion load

// #region validate
// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	if err := c.Predictor.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Stability.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ModelPath == "" {
		errs = append(errs, errors.New("model path is empty"))
	}
	switch c.Classifier {
	case ClassifierLocal:
	case ClassifierRemote:
		if c.CameraEnabled && !c.Remote.Enabled() {
			errs = append(errs, errors.New("remote classifier needs RPS_REMOTE_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier %q", c.Classifier))
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// envDuration accepts Go durations ("750ms") or bare milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// #endregion helpers

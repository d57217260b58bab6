package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/paths"
	"github.com/odvcencio/flux/pkg/permission"
)

// MinPollInterval is the shortest accepted permission poll interval.
const MinPollInterval = 100 * time.Millisecond

// Config is the complete flux configuration.
type Config struct {
	Permissions PermissionsConfig `yaml:"permissions"`
	Onboarding  OnboardingConfig  `yaml:"onboarding"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
}

// PermissionsConfig controls the onboarding permission set and how it is polled.
type PermissionsConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Required     []string      `yaml:"required"`
	// AutomationTargets are bundle identifiers added to the required set as
	// automation permissions.
	AutomationTargets []string `yaml:"automation_targets"`
}

// OnboardingConfig controls the onboarding flow.
type OnboardingConfig struct {
	SkipSidecarCheck bool `yaml:"skip_sidecar_check"`
}

// StorageConfig locates the sqlite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls the structured event logger.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// ServerConfig controls the local API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// TranscriberConfig points at the local speech sidecar.
type TranscriberConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Permissions: PermissionsConfig{
			PollInterval: permission.DefaultPollInterval,
			Required:     []string{"accessibility", "screenRecording", "microphone"},
		},
		Storage: StorageConfig{
			Path: paths.DBPath(),
		},
		Logging: LoggingConfig{
			Dir:   paths.LogsBaseDir(),
			Level: string(logging.LevelInfo),
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:7849",
		},
		Transcriber: TranscriberConfig{
			URL:     "http://127.0.0.1:7848",
			Timeout: 60 * time.Second,
		},
	}
}

// Load loads configuration from default locations with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// User config (~/.flux/config.yaml)
	userConfigPath := filepath.Join(paths.HomeDir(), "config.yaml")
	if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "loading user config").WithContext("path", userConfigPath)
	}

	// Project config (./.flux/config.yaml)
	projectConfigPath := filepath.Join(paths.ProjectDir("."), "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "loading project config").WithContext("path", projectConfigPath)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, fmt.Sprintf("loading config from %s", path))
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("FLUX_POLL_INTERVAL")); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.Permissions.PollInterval = d
		}
	}
	if v := os.Getenv("FLUX_REQUIRED_PERMISSIONS"); strings.TrimSpace(v) != "" {
		cfg.Permissions.Required = splitCommaList(v)
	}
	if v := strings.TrimSpace(os.Getenv(paths.EnvFluxDBPath)); v != "" {
		cfg.Storage.Path = paths.ExpandHome(v)
	}
	if v := strings.TrimSpace(os.Getenv(paths.EnvFluxLogDir)); v != "" {
		cfg.Logging.Dir = paths.ExpandHome(v)
	}
	if v := strings.TrimSpace(os.Getenv("FLUX_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("FLUX_LISTEN_ADDR")); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("FLUX_TRANSCRIBER_URL")); v != "" {
		cfg.Transcriber.URL = v
	}
	if val, ok := envBool("FLUX_SKIP_SIDECAR_CHECK"); ok {
		cfg.Onboarding.SkipSidecarCheck = val
	}
}

// parseDuration accepts Go durations ("500ms") and bare milliseconds ("500").
func parseDuration(raw string) (time.Duration, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func isLoopbackBindAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	switch strings.ToLower(host) {
	case "localhost":
		return true
	case "0.0.0.0", "::":
		return false
	default:
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return ip.IsLoopback()
	}
}

// RequiredPermissions resolves the configured names and automation targets
// into the onboarding set.
func (c *Config) RequiredPermissions() (permission.Set, error) {
	set, err := permission.ParseSet(c.Permissions.Required)
	if err != nil {
		return nil, err
	}
	for _, target := range c.Permissions.AutomationTargets {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		set = append(set, permission.Automation(target))
	}
	return permission.NewSet(set...), nil
}

// PollInterval returns the configured interval, or the default when unset.
func (c *Config) PollInterval() time.Duration {
	if c == nil || c.Permissions.PollInterval <= 0 {
		return permission.DefaultPollInterval
	}
	return c.Permissions.PollInterval
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.Level {
	level, ok := logging.ParseLevel(c.Logging.Level)
	if !ok {
		return logging.LevelInfo
	}
	return level
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Permissions.PollInterval != 0 && c.Permissions.PollInterval < MinPollInterval {
		return apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("permissions.poll_interval must be at least %s (got %s)", MinPollInterval, c.Permissions.PollInterval))
	}
	if _, err := c.RequiredPermissions(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "permissions.required")
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		return apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid logging.level: %s (valid: debug, info, warn, error)", c.Logging.Level))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "storage.path must be set")
	}
	if addr := strings.TrimSpace(c.Server.ListenAddr); addr != "" && !isLoopbackBindAddress(addr) {
		return apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("server.listen_addr must be a loopback address (got %s)", addr)).
			WithRemediation("use 127.0.0.1:<port> or localhost:<port>")
	}
	if c.Transcriber.Timeout < 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "transcriber.timeout must be >= 0")
	}
	return nil
}

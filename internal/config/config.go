package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Plain      bool
	Timeout    string
	Retries    int
	NoCache    bool
}

type Settings struct {
	OutputMode    string
	Timeout       time.Duration
	Retries       int
	PriceWindow   time.Duration
	PricesEnabled bool
	StorePath     string
	StoreLockPath string
	RouterAPIKey  string
	RouterBaseURL string
	PricesBaseURL string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Prices  struct {
		Enabled *bool  `yaml:"enabled"`
		Window  string `yaml:"window"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"prices"`
	Store struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"store"`
	Router struct {
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"router"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.PriceWindow <= 0 {
		settings.PriceWindow = 5 * time.Minute
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultStorePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:    "json",
		Timeout:       10 * time.Second,
		Retries:       2,
		PriceWindow:   5 * time.Minute,
		PricesEnabled: true,
		StorePath:     storePath,
		StoreLockPath: lockPath,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "sweep", "config.yaml"), nil
}

func defaultStorePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "sweep")
	return filepath.Join(dir, "bundles.db"), filepath.Join(dir, "bundles.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Prices.Enabled != nil {
		settings.PricesEnabled = *cfg.Prices.Enabled
	}
	if cfg.Prices.Window != "" {
		d, err := time.ParseDuration(cfg.Prices.Window)
		if err != nil {
			return fmt.Errorf("config prices.window: %w", err)
		}
		settings.PriceWindow = d
	}
	if cfg.Prices.BaseURL != "" {
		settings.PricesBaseURL = cfg.Prices.BaseURL
	}
	if cfg.Store.Path != "" {
		settings.StorePath = cfg.Store.Path
	}
	if cfg.Store.LockPath != "" {
		settings.StoreLockPath = cfg.Store.LockPath
	}
	if cfg.Router.APIKey != "" {
		settings.RouterAPIKey = cfg.Router.APIKey
	}
	if cfg.Router.APIKeyEnv != "" {
		settings.RouterAPIKey = os.Getenv(cfg.Router.APIKeyEnv)
	}
	if cfg.Router.BaseURL != "" {
		settings.RouterBaseURL = cfg.Router.BaseURL
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("SWEEP_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SWEEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SWEEP_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("SWEEP_NO_PRICES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.PricesEnabled = !b
		}
	}
	if v := os.Getenv("SWEEP_STORE_PATH"); v != "" {
		settings.StorePath = v
	}
	if v := os.Getenv("SWEEP_STORE_LOCK_PATH"); v != "" {
		settings.StoreLockPath = v
	}
	if v := os.Getenv("SWEEP_ROUTER_API_KEY"); v != "" {
		settings.RouterAPIKey = v
	}
	if v := os.Getenv("SWEEP_ROUTER_BASE_URL"); v != "" {
		settings.RouterBaseURL = v
	}
	if v := os.Getenv("SWEEP_PRICES_BASE_URL"); v != "" {
		settings.PricesBaseURL = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("--json and --plain are mutually exclusive")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.NoCache {
		settings.PricesEnabled = false
	}
	return nil
}

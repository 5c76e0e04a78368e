package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Runner RunnerConfig `toml:"runner"`
	Report ReportConfig `toml:"report"`
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	// RunInterval schedules periodic suite runs; zero disables them.
	RunInterval Duration `toml:"run_interval"`
}

type RunnerConfig struct {
	// Mock selects the built-in static runner instead of a remote service.
	Mock    bool     `toml:"mock"`
	URL     string   `toml:"url"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout"`
	// MockDurationMillis is the duration reported by the static runner.
	MockDurationMillis int64 `toml:"mock_duration_ms"`
}

type ReportConfig struct {
	Dir    string `toml:"dir"`
	Format string `toml:"format"`
}

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{15 * time.Second},
		},
		Runner: RunnerConfig{
			Timeout: Duration{30 * time.Second},
		},
		Report: ReportConfig{
			Dir:    "reports",
			Format: "json",
		},
	}
}

// Load reads the TOML file at path, when path is non-empty, over the
// defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnvOrDefault("SUITE_ADDR", c.Server.Addr)
	c.Runner.URL = getEnvOrDefault("RUNNER_URL", c.Runner.URL)
	c.Runner.Token = getEnvOrDefault("RUNNER_TOKEN", c.Runner.Token)
	c.Report.Dir = getEnvOrDefault("REPORT_DIR", c.Report.Dir)

	if v := os.Getenv("USE_MOCK"); v != "" {
		mock, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid USE_MOCK %q: %w", v, err)
		}
		c.Runner.Mock = mock
	}
	if v := os.Getenv("RUN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RUN_INTERVAL %q: %w", v, err)
		}
		c.Server.RunInterval = Duration{d}
	}
	if v := os.Getenv("RUNNER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RUNNER_TIMEOUT %q: %w", v, err)
		}
		c.Runner.Timeout = Duration{d}
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Runner.Timeout.Duration <= 0 {
		c.Runner.Timeout = def.Runner.Timeout
	}
	if c.Report.Dir == "" {
		c.Report.Dir = def.Report.Dir
	}
	if c.Report.Format == "" {
		c.Report.Format = def.Report.Format
	}
	// Without a runner service there is nothing else to execute against.
	if c.Runner.URL == "" {
		c.Runner.Mock = true
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

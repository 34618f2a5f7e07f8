package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/automaton-insight/internal/infra/simulator"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		CORSOrigins  []string      `yaml:"corsOrigins"`
		RateLimit    struct {
			Capacity        int `yaml:"capacity"`
			RefillPerSecond int `yaml:"refillPerSecond"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | console
	} `yaml:"log"`

	LLM struct {
		Provider    string        `yaml:"provider"` // openai | gemini | fake
		Model       string        `yaml:"model"`
		APIKey      string        `yaml:"apiKey"`
		BaseURL     string        `yaml:"baseURL"`
		Mode        string        `yaml:"mode"` // json_schema | json_object (openai)
		Timeout     time.Duration `yaml:"timeout"`
		MaxAttempts int           `yaml:"maxAttempts"`
		BaseDelay   time.Duration `yaml:"baseDelay"`
		FakeLatency time.Duration `yaml:"fakeLatency"`
	} `yaml:"llm"`

	Database struct {
		Driver   string `yaml:"driver"` // memory | mysql | postgres
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		MaxRuns  int    `yaml:"maxRuns"` // memory driver only
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Slots struct {
		RegistrySize int `yaml:"registrySize"`
	} `yaml:"slots"`

	Events struct {
		Capacity   int `yaml:"capacity"`
		MaxTenants int `yaml:"maxTenants"`
	} `yaml:"events"`

	Telemetry struct {
		Enabled   bool               `yaml:"enabled"`
		Interval  time.Duration      `yaml:"interval"`
		Window    int                `yaml:"window"`
		Seed      int64              `yaml:"seed"`
		MaxSeries int                `yaml:"maxSeries"`
		Metrics   []simulator.Metric `yaml:"metrics"`
	} `yaml:"telemetry"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 90 * time.Second
	c.Server.RateLimit.Capacity = 60
	c.Server.RateLimit.RefillPerSecond = 1
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.LLM.Provider = "fake"
	c.LLM.Mode = "json_schema"
	c.LLM.Timeout = 60 * time.Second
	c.LLM.MaxAttempts = 3
	c.LLM.BaseDelay = 300 * time.Millisecond
	c.Database.Driver = "memory"
	c.Database.MaxRuns = 1000
	c.Minio.BucketName = "insight-payloads"
	c.Slots.RegistrySize = 1024
	c.Events.Capacity = 10000
	c.Events.MaxTenants = 1024
	c.Telemetry.Enabled = true
	c.Telemetry.Interval = 2 * time.Second
	c.Telemetry.Window = simulator.DefaultWindow
	c.Telemetry.MaxSeries = simulator.DefaultMaxSeries
	return &c
}

// Load baca .env lalu file config, kemudian override dari environment.
// A missing config file is not an error; defaults and env apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil && v > 0 {
		c.Server.Port = v
	}

	// secret per provider
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks enum fields, required secrets and sizes that must be positive.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "fake":
	case "openai", "gemini":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("config: llm.apiKey is required for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("config: unknown llm.provider %q (openai, gemini, fake)", c.LLM.Provider)
	}
	switch c.LLM.Mode {
	case "json_schema", "json_object":
	default:
		return fmt.Errorf("config: unknown llm.mode %q", c.LLM.Mode)
	}
	switch c.Database.Driver {
	case "memory", "mysql", "postgres":
	default:
		return fmt.Errorf("config: unknown database.driver %q (memory, mysql, postgres)", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	positive := []struct {
		key string
		n   int64
	}{
		{"slots.registrySize", int64(c.Slots.RegistrySize)},
		{"events.capacity", int64(c.Events.Capacity)},
		{"events.maxTenants", int64(c.Events.MaxTenants)},
		{"telemetry.interval", int64(c.Telemetry.Interval)},
		{"telemetry.window", int64(c.Telemetry.Window)},
		{"telemetry.maxSeries", int64(c.Telemetry.MaxSeries)},
	}
	for _, p := range positive {
		if p.n <= 0 {
			return fmt.Errorf("config: %s must be greater than zero", p.key)
		}
	}
	return nil
}

// DSN returns database.dsn, or builds one from the discrete fields.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	switch c.Database.Driver {
	case "postgres":
		return c.PostgresDSN()
	case "mysql":
		return c.MySQLDSN()
	}
	return ""
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Package config loads sitesmith settings from an optional YAML file, an
// optional .env file and the environment. Environment variables win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the process configuration.
type Config struct {
	// Model settings
	ModelProvider string  `yaml:"model_provider"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	OpenAIKey     string  `yaml:"-"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
	GeminiKey     string  `yaml:"-"`

	// Storage
	DataDir string `yaml:"data_dir"`
	Journal string `yaml:"journal"`

	// Sandbox settings
	SandboxProvider string        `yaml:"sandbox_provider"`
	SandboxTemplate string        `yaml:"sandbox_template"`
	SandboxTimeout  time.Duration `yaml:"sandbox_timeout"`
	PreviewPort     int           `yaml:"preview_port"`
	PublishHost     string        `yaml:"publish_host"`
	PreviewScheme   string        `yaml:"preview_scheme"`

	// Engine settings
	MaxIterations int `yaml:"max_iterations"`
	Workers       int `yaml:"workers"`

	// Server settings
	HTTPAddr  string `yaml:"http_addr"`
	ServerURL string `yaml:"server_url"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ModelProvider:   "openai",
		Model:           "gpt-4o",
		Temperature:     0.1,
		DataDir:         "data",
		Journal:         "sqlite",
		SandboxProvider: "docker",
		SandboxTemplate: "sitesmith-nextjs:latest",
		SandboxTimeout:  10 * time.Minute,
		PreviewPort:     3000,
		PublishHost:     "127.0.0.1",
		PreviewScheme:   "http",
		MaxIterations:   15,
		Workers:         4,
		HTTPAddr:        ":8080",
		ServerURL:       "http://localhost:8080",
		LogLevel:        "info",
	}
}

// Load reads .env (if present), then the YAML file named by SITESMITH_CONFIG
// (if set), then the environment.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("SITESMITH_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ModelProvider = getEnv("MODEL_PROVIDER", cfg.ModelProvider)
	cfg.Model = getEnv("MODEL", cfg.Model)
	cfg.Temperature = getEnvFloat("TEMPERATURE", cfg.Temperature)
	cfg.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.GeminiKey = getEnv("GEMINI_API_KEY", cfg.GeminiKey)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.Journal = getEnv("JOURNAL", cfg.Journal)
	cfg.SandboxProvider = getEnv("SANDBOX_PROVIDER", cfg.SandboxProvider)
	cfg.SandboxTemplate = getEnv("SANDBOX_TEMPLATE", cfg.SandboxTemplate)
	cfg.SandboxTimeout = getEnvDuration("SANDBOX_TIMEOUT", cfg.SandboxTimeout)
	cfg.PreviewPort = getEnvInt("PREVIEW_PORT", cfg.PreviewPort)
	cfg.PublishHost = getEnv("PUBLISH_HOST", cfg.PublishHost)
	cfg.PreviewScheme = getEnv("PREVIEW_SCHEME", cfg.PreviewScheme)
	cfg.MaxIterations = getEnvInt("MAX_ITERATIONS", cfg.MaxIterations)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ServerURL = getEnv("SITESMITH_URL", cfg.ServerURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.ModelProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown model provider %q", c.ModelProvider)
	}
	switch c.Journal {
	case "sqlite", "badger", "memory":
	default:
		return fmt.Errorf("unknown journal %q", c.Journal)
	}
	switch c.SandboxProvider {
	case "docker", "memory":
	default:
		return fmt.Errorf("unknown sandbox provider %q", c.SandboxProvider)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// DatabasePath is the SQLite database file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "sitesmith.db")
}

// TranscriptsPath is the run transcript directory inside DataDir.
func (c *Config) TranscriptsPath() string {
	return filepath.Join(c.DataDir, "transcripts")
}

// JournalPath is the Badger journal directory inside DataDir.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

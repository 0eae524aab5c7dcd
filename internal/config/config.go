package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds user preferences and connection settings
type Config struct {
	ServerURL      string        `yaml:"server_url" json:"server_url"`           // Backend base URL
	Origin         string        `yaml:"origin" json:"origin"`                   // Redirect origin, hosts the OAuth callback listener
	StorePath      string        `yaml:"store_path" json:"store_path"`           // SQLite file backing the persistent store
	TotalTopics    int           `yaml:"total_topics" json:"total_topics"`       // Number of top-level curriculum topics
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"` // Per-request HTTP timeout

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns the directory holding config, store and logs.
// LEARNPORTAL_HOME overrides the default ~/.learnportal.
func Dir() (string, error) {
	if dir := os.Getenv("LEARNPORTAL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".learnportal"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir, _ := Dir()
	logPath, storePath := "", ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "portal.log")
		storePath = filepath.Join(dir, "portal.db")
	}

	return &Config{
		ServerURL:      getEnv("LEARNPORTAL_SERVER_URL", "http://localhost:8080"),
		Origin:         getEnv("LEARNPORTAL_ORIGIN", "http://127.0.0.1:8089"),
		StorePath:      getEnv("LEARNPORTAL_STORE_PATH", storePath),
		TotalTopics:    getEnvInt("LEARNPORTAL_TOTAL_TOPICS", 6),
		RequestTimeout: 30 * time.Second,
		LogLevel:       getEnv("LEARNPORTAL_LOG_LEVEL", "INFO"),
		LogFile:        getEnv("LEARNPORTAL_LOG_FILE", logPath),
		LogConsole:     getEnv("LEARNPORTAL_LOG_CONSOLE", "false") == "true",
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

// Path returns the location of config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from config.yaml, falling back to defaults when it is missing
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves config to config.yaml
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Set updates a single setting by its yaml key
func (c *Config) Set(key, value string) error {
	switch key {
	case "server_url":
		c.ServerURL = strings.TrimRight(value, "/")
	case "origin":
		c.Origin = strings.TrimRight(value, "/")
	case "store_path":
		c.StorePath = value
	case "total_topics":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("total_topics must be a non-negative integer")
		}
		c.TotalTopics = n
	case "request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid request_timeout: %w", err)
		}
		c.RequestTimeout = d
	case "log_level":
		c.LogLevel = strings.ToUpper(value)
	case "log_file":
		c.LogFile = value
	case "log_console":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid log_console: %w", err)
		}
		c.LogConsole = b
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

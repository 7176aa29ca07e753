package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
)

// Config holds the application configuration
type Config struct {
	Backend    BackendConfig    `json:"backend"`
	Classifier ClassifierConfig `json:"classifier"`
	Processing ProcessingConfig `json:"processing"`
	Report     ReportConfig     `json:"report"`
	Cache      CacheConfig      `json:"cache"`
	Output     OutputConfig     `json:"output"`
}

// BackendConfig selects the vision model server
type BackendConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ClassifierConfig holds configuration for classification
type ClassifierConfig struct {
	Model      string   `json:"model"`
	Labels     []string `json:"labels"`
	MaxResults int      `json:"max_results"`
}

// ProcessingConfig holds configuration for preparing images
type ProcessingConfig struct {
	CacheDir    string `json:"cache_dir"`
	SendFormat  string `json:"send_format"`
	SendSize    int    `json:"send_size"`
	SendQuality int    `json:"send_quality"`
	CropQuality int    `json:"crop_quality"`
	MinSize     int    `json:"min_size"`
}

// ReportConfig holds configuration for the formatted report
type ReportConfig struct {
	Locale string `json:"locale"`
}

// CacheConfig holds configuration for the classification cache
type CacheConfig struct {
	RedisAddr string `json:"redis_addr"`
	TTL       string `json:"ttl"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir string `json:"output_dir"`
	LogFile   string `json:"log_file"`
}

// DefaultBackendURL returns the default server URL for a backend
func DefaultBackendURL(backend string) string {
	switch backend {
	case "ollama":
		return "http://localhost:11435/api/chat"
	default:
		return "http://localhost:8080"
	}
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Name: "llamacpp",
			URL:  "",
		},
		Classifier: ClassifierConfig{
			Model:      "openbmb/minicpm-v4.5",
			MaxResults: 5,
		},
		Processing: ProcessingConfig{
			CacheDir:    filepath.Join(os.TempDir(), "image-classifier"),
			SendFormat:  "jpg",
			SendSize:    1536,
			SendQuality: 85,
			CropQuality: 90,
			MinSize:     32,
		},
		Report: ReportConfig{
			Locale: "en",
		},
		Cache: CacheConfig{
			TTL: "1h",
		},
		Output: OutputConfig{
			OutputDir: "./out",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BackendURL returns the configured URL or the backend default
func (c *Config) BackendURL() string {
	if c.Backend.URL != "" {
		return c.Backend.URL
	}
	return DefaultBackendURL(c.Backend.Name)
}

// LocaleTag parses the report locale
func (c *Config) LocaleTag() (language.Tag, error) {
	return language.Parse(c.Report.Locale)
}

// CacheTTL parses the cache expiration
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Cache.TTL)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Backend.Name != "ollama" && c.Backend.Name != "llamacpp" {
		return fmt.Errorf("backend.name must be ollama or llamacpp, got %q", c.Backend.Name)
	}

	if c.Classifier.Model == "" {
		return fmt.Errorf("classifier.model cannot be empty")
	}

	if c.Classifier.MaxResults < 0 {
		return fmt.Errorf("classifier.max_results cannot be negative")
	}

	if c.Processing.SendFormat != "jpg" && c.Processing.SendFormat != "png" {
		return fmt.Errorf("processing.send_format must be jpg or png")
	}

	if c.Processing.SendQuality < 1 || c.Processing.SendQuality > 100 {
		return fmt.Errorf("processing.send_quality must be between 1 and 100")
	}

	if c.Processing.CropQuality < 1 || c.Processing.CropQuality > 100 {
		return fmt.Errorf("processing.crop_quality must be between 1 and 100")
	}

	if c.Processing.SendSize < 0 {
		return fmt.Errorf("processing.send_size cannot be negative")
	}

	if c.Processing.CacheDir == "" {
		return fmt.Errorf("processing.cache_dir cannot be empty")
	}

	if _, err := c.LocaleTag(); err != nil {
		return fmt.Errorf("report.locale is invalid: %w", err)
	}

	if _, err := c.CacheTTL(); err != nil {
		return fmt.Errorf("cache.ttl is invalid: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-classifier", "config.json")
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Source is the file the configuration was read from, empty for defaults
	Source string `json:"-"`

	API struct {
		BaseURL string   `json:"base_url"`
		Timeout Duration `json:"timeout"`
	} `json:"api"`

	Storage struct {
		Backend       string `json:"backend"` // "file", "redis" or "memory"
		Dir           string `json:"dir"`
		Secret        string `json:"secret"`
		RedisAddr     string `json:"redis_addr"`
		RedisPassword string `json:"redis_password"`
		RedisDB       int    `json:"redis_db"`
	} `json:"storage"`

	Workflow struct {
		MinAnalyzeDuration *Duration `json:"min_analyze_duration"`
	} `json:"workflow"`

	Server struct {
		Port      string   `json:"port"`
		UploadDir string   `json:"upload_dir"`
		Debug     bool     `json:"debug"`
		JWTSecret string   `json:"jwt_secret"`
		TokenTTL  Duration `json:"token_ttl"`
	} `json:"server"`

	Database struct {
		Path string `json:"path"`
	} `json:"database"`

	ML struct {
		Type       string `json:"type"` // "local" or "google"
		ConfigPath string `json:"config_path"`
	} `json:"ml"`
}

// Defaults
const (
	DefaultBaseURL            = "http://localhost:8080"
	DefaultTimeout            = 30 * time.Second
	DefaultMinAnalyzeDuration = 4 * time.Second
	DefaultTokenTTL           = 24 * time.Hour
)

// Duration is a time.Duration written as a string such as "4s" in JSON
type Duration time.Duration

// UnmarshalJSON accepts "1m30s" style strings or a number of nanoseconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration in its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadConfig loads configuration from a JSON file. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		config.Source = configPath
	}

	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LEAFMETRIC_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("LEAFMETRIC_STORE_SECRET"); v != "" {
		c.Storage.Secret = v
	}
	if v := os.Getenv("LEAFMETRIC_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(DefaultTimeout)
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = defaultStorageDir()
	}
	if c.Workflow.MinAnalyzeDuration == nil {
		d := Duration(DefaultMinAnalyzeDuration)
		c.Workflow.MinAnalyzeDuration = &d
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "./uploads"
	}
	if c.Server.TokenTTL == 0 {
		c.Server.TokenTTL = Duration(DefaultTokenTTL)
	}
	if c.Database.Path == "" {
		c.Database.Path = "leafmetric.db"
	}
	if c.ML.Type == "" {
		c.ML.Type = "local"
	}
}

// MinAnalyzeDuration is the shortest time the analysis step stays in its loading phase
func (c *Config) MinAnalyzeDuration() time.Duration {
	if c.Workflow.MinAnalyzeDuration == nil {
		return DefaultMinAnalyzeDuration
	}
	return c.Workflow.MinAnalyzeDuration.Std()
}

// ValidateServer checks the settings the grading server cannot run without
func (c *Config) ValidateServer() error {
	if c.Server.Port == "" {
		// Fail if port is not set
		return fmt.Errorf("server port is not set in config file")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server jwt_secret is not set (config or LEAFMETRIC_JWT_SECRET)")
	}
	return nil
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".leafmetric"
	}
	return filepath.Join(home, ".leafmetric")
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("LEAFMETRIC_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}

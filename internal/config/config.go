package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Profile   ProfileConfig   `yaml:"profile"`
	Session   SessionConfig   `yaml:"session"`
	Prefs     PrefsConfig     `yaml:"preferences"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AWSConfig holds the object storage used for voice notes and images
type AWSConfig struct {
	Region     string `yaml:"region"`
	S3Bucket   string `yaml:"s3_bucket"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Endpoint   string `yaml:"endpoint"`
	PublicURL  string `yaml:"public_url"`
	UsePathURL bool   `yaml:"use_path_style"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// CORSConfig lists the origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig bounds auth attempts per client IP
type RateLimitConfig struct {
	AuthRequests int           `yaml:"auth_requests"`
	Window       time.Duration `yaml:"window"`
}

// ProfileConfig controls profiles created on first sign-in
type ProfileConfig struct {
	DefaultName    string        `yaml:"default_name"`
	HandleCooldown time.Duration `yaml:"handle_cooldown"`
}

// SessionConfig controls how long an unused user session stays in memory
type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// PrefsConfig points at the local preferences file applied at startup.
// Empty means the per-user default location.
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file, then applies MASSA_*
// environment overrides (a .env file is honoured) and defaults.
// A missing file is not an error when the environment supplies the rest.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that would stop the server from working
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		return errors.New("database.url or database.host is required")
	}
	if c.Session.IdleTimeout < time.Minute {
		return errors.New("session.idle_timeout must be at least 1m")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 30 * 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.RateLimit.AuthRequests == 0 {
		c.RateLimit.AuthRequests = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = 24 * time.Hour
	}
	if c.Profile.DefaultName == "" {
		c.Profile.DefaultName = "New User"
	}
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Host, "MASSA_HOST")
	if err := setInt(&c.Server.Port, "MASSA_PORT"); err != nil {
		return err
	}
	setString(&c.Database.URL, "MASSA_DATABASE_URL")
	setString(&c.JWT.Secret, "MASSA_JWT_SECRET")
	setString(&c.Log.Level, "MASSA_LOG_LEVEL")
	setString(&c.AWS.Region, "MASSA_AWS_REGION")
	setString(&c.AWS.S3Bucket, "MASSA_S3_BUCKET")
	setString(&c.AWS.AccessKey, "MASSA_AWS_ACCESS_KEY")
	setString(&c.AWS.SecretKey, "MASSA_AWS_SECRET_KEY")
	setString(&c.AWS.Endpoint, "MASSA_S3_ENDPOINT")
	if v := env("MASSA_CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitCSV(v)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

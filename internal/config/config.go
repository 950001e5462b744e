package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
	EnvironmentTest        Environment = "test"
)

var ErrMissingURI = errors.New("MONGODB_URI must be set")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Redis     RedisConfig     `yaml:"redis"`
	OpenFGA   OpenFGAConfig   `yaml:"openfga"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Security  SecurityConfig  `yaml:"security"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Environment  Environment   `yaml:"environment"`
	StaticDir    string        `yaml:"static_dir"`
	LogLevel     string        `yaml:"log_level"`
}

type DatabaseConfig struct {
	URI            string        `yaml:"uri"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	AuditRetention time.Duration `yaml:"audit_retention"`
}

type AuthConfig struct {
	Secret            string        `yaml:"secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	CookieName        string        `yaml:"cookie_name"`
	CookieSecure      bool          `yaml:"cookie_secure"`
	LoginPath         string        `yaml:"login_path"`
	AdminUsername     string        `yaml:"admin_username"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type OpenFGAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"api_token"`
	StoreID  string `yaml:"store_id"`
	ModelID  string `yaml:"model_id"`
}

type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ExporterURL    string  `yaml:"exporter_url"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	SamplingRatio  float64 `yaml:"sampling_ratio"`
}

type SecurityConfig struct {
	WriteLimit       int           `yaml:"write_limit"`
	WriteWindow      time.Duration `yaml:"write_window"`
	CORSAllowOrigins string        `yaml:"cors_allow_origins"`
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LoginBlockWindow time.Duration `yaml:"login_block_window"`
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvironmentProduction
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "3000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Environment:  EnvironmentDevelopment,
			StaticDir:    "./web",
			LogLevel:     "info",
		},
		Database: DatabaseConfig{
			Name:           "groupdesk",
			ConnectTimeout: 10 * time.Second,
			AuditRetention: 90 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			TokenTTL:      24 * time.Hour,
			CookieName:    "groupdesk_session",
			LoginPath:     "/login",
			AdminUsername: "admin",
		},
		OpenFGA: OpenFGAConfig{
			APIURL: "http://localhost:8080",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "groupdesk",
			ServiceVersion: "dev",
			Environment:    string(EnvironmentDevelopment),
			SamplingRatio:  1.0,
		},
		Security: SecurityConfig{
			WriteLimit:       30,
			WriteWindow:      time.Minute,
			CORSAllowOrigins: "*",
			MaxLoginAttempts: 5,
			LoginBlockWindow: 15 * time.Minute,
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URI) == "" {
		return ErrMissingURI
	}
	if c.IsProduction() && c.Auth.Secret == "" {
		return errors.New("AUTH_SECRET must be set in production")
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.Environment = Environment(getEnv("SERVER_ENVIRONMENT", string(c.Server.Environment)))
	c.Server.StaticDir = getEnv("SERVER_STATIC_DIR", c.Server.StaticDir)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)

	c.Database.URI = getEnv("MONGODB_URI", c.Database.URI)
	c.Database.Name = getEnv("MONGODB_DATABASE", c.Database.Name)
	c.Database.ConnectTimeout = getEnvDuration("MONGODB_CONNECT_TIMEOUT", c.Database.ConnectTimeout)
	c.Database.AuditRetention = getEnvDuration("AUDIT_RETENTION", c.Database.AuditRetention)

	c.Auth.Secret = getEnv("AUTH_SECRET", c.Auth.Secret)
	c.Auth.TokenTTL = getEnvDuration("AUTH_TOKEN_TTL", c.Auth.TokenTTL)
	c.Auth.CookieName = getEnv("AUTH_COOKIE_NAME", c.Auth.CookieName)
	c.Auth.CookieSecure = getEnvBool("AUTH_COOKIE_SECURE", c.Auth.CookieSecure)
	c.Auth.LoginPath = getEnv("AUTH_LOGIN_PATH", c.Auth.LoginPath)
	c.Auth.AdminUsername = getEnv("ADMIN_USERNAME", c.Auth.AdminUsername)
	c.Auth.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", c.Auth.AdminPasswordHash)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)

	c.OpenFGA.Enabled = getEnvBool("OPENFGA_ENABLED", c.OpenFGA.Enabled)
	c.OpenFGA.APIURL = getEnv("OPENFGA_API_URL", c.OpenFGA.APIURL)
	c.OpenFGA.APIToken = getEnv("OPENFGA_API_TOKEN", c.OpenFGA.APIToken)
	c.OpenFGA.StoreID = getEnv("OPENFGA_STORE_ID", c.OpenFGA.StoreID)
	c.OpenFGA.ModelID = getEnv("OPENFGA_MODEL_ID", c.OpenFGA.ModelID)

	c.Telemetry.Enabled = getEnvBool("TELEMETRY_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.ExporterURL = getEnv("TELEMETRY_EXPORTER_URL", c.Telemetry.ExporterURL)
	c.Telemetry.ServiceName = getEnv("TELEMETRY_SERVICE_NAME", c.Telemetry.ServiceName)
	c.Telemetry.ServiceVersion = getEnv("VERSION", c.Telemetry.ServiceVersion)
	c.Telemetry.Environment = string(c.Server.Environment)
	c.Telemetry.SamplingRatio = getEnvFloat("TELEMETRY_SAMPLING_RATIO", c.Telemetry.SamplingRatio)

	c.Security.WriteLimit = getEnvInt("SECURITY_WRITE_LIMIT", c.Security.WriteLimit)
	c.Security.WriteWindow = getEnvDuration("SECURITY_WRITE_WINDOW", c.Security.WriteWindow)
	c.Security.CORSAllowOrigins = getEnv("CORS_ALLOW_ORIGINS", c.Security.CORSAllowOrigins)
	c.Security.MaxLoginAttempts = getEnvInt("SECURITY_MAX_LOGIN_ATTEMPTS", c.Security.MaxLoginAttempts)
	c.Security.LoginBlockWindow = getEnvDuration("SECURITY_LOGIN_BLOCK_WINDOW", c.Security.LoginBlockWindow)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

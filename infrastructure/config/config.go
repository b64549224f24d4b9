package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	domainconfig "github.com/Sakeeb91/claim-mapper-sub003/domain/config"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML file overlaid on the defaults
const FileEnv = "COLLAB_CONFIG"

// Config holds all application configuration
type Config struct {
	// Server configuration
	ListenAddress string `yaml:"listen_address" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production"`

	// Collaboration backend
	APIBaseURL   string        `yaml:"api_base_url" validate:"required,url"`
	WebSocketURL string        `yaml:"websocket_url" validate:"required,url"`
	AuthToken    string        `yaml:"auth_token"`
	ProjectID    string        `yaml:"project_id"`
	APITimeout   time.Duration `yaml:"api_timeout" validate:"gt=0"`

	// Real-time channel
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout" validate:"gt=0"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" validate:"gte=0"`
	ReconnectInitial     time.Duration `yaml:"reconnect_initial" validate:"gt=0"`
	ReconnectMax         time.Duration `yaml:"reconnect_max" validate:"gtefield=ReconnectInitial"`

	// Session limits
	HistoryCapacity      int           `yaml:"history_capacity" validate:"gt=0"`
	NotificationCapacity int           `yaml:"notification_capacity" validate:"gt=0"`
	MutationTimeout      time.Duration `yaml:"mutation_timeout" validate:"gt=0"`
	CursorUpdateInterval time.Duration `yaml:"cursor_update_interval" validate:"gt=0"`
	IdleAfter            time.Duration `yaml:"idle_after" validate:"gte=0"`

	// AWS configuration
	AWSRegion    string `yaml:"aws_region"`
	EventBusName string `yaml:"event_bus_name"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Local API authentication and limits
	LocalAPIToken      string   `yaml:"local_api_token"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" validate:"gte=0"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// Feature flags
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableCORS    bool `yaml:"enable_cors"`

	// LoadedFrom lists the sources applied, lowest priority first
	LoadedFrom []string `yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:8787",
		Environment:   "development",

		APIBaseURL:   "http://localhost:8080/api",
		WebSocketURL: "ws://localhost:8080/ws",
		APITimeout:   15 * time.Second,

		HandshakeTimeout:     10 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectInitial:     500 * time.Millisecond,
		ReconnectMax:         10 * time.Second,

		HistoryCapacity:      100,
		NotificationCapacity: 200,
		MutationTimeout:      30 * time.Second,
		CursorUpdateInterval: 50 * time.Millisecond,
		IdleAfter:            2 * time.Minute,

		AWSRegion: "us-west-2",

		LogLevel:           "info",
		RateLimitPerMinute: 600,
		CORSAllowedOrigins: []string{"http://localhost:3000"},

		EnableMetrics: true,
		EnableCORS:    true,
	}
}

// LoadConfig builds the configuration from, lowest priority first: the
// defaults, the YAML file named by COLLAB_CONFIG, and environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = []string{"defaults"}

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnvironmentVariables()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// LoadFile overlays a YAML file. Keys absent from the file keep their
// current values.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.LoadedFrom = append(c.LoadedFrom, path)
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.ListenAddress = getEnv("LISTEN_ADDRESS", c.ListenAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.APIBaseURL = getEnv("COLLAB_API_URL", c.APIBaseURL)
	c.WebSocketURL = getEnv("COLLAB_WS_URL", c.WebSocketURL)
	c.AuthToken = getEnv("COLLAB_TOKEN", c.AuthToken)
	c.ProjectID = getEnv("COLLAB_PROJECT", c.ProjectID)
	c.APITimeout = getEnvDuration("COLLAB_API_TIMEOUT", c.APITimeout)

	c.HandshakeTimeout = getEnvDuration("WS_HANDSHAKE_TIMEOUT", c.HandshakeTimeout)
	c.MaxReconnectAttempts = getEnvInt("WS_MAX_RECONNECT_ATTEMPTS", c.MaxReconnectAttempts)
	c.ReconnectInitial = getEnvDuration("WS_RECONNECT_INITIAL", c.ReconnectInitial)
	c.ReconnectMax = getEnvDuration("WS_RECONNECT_MAX", c.ReconnectMax)

	c.HistoryCapacity = getEnvInt("HISTORY_CAPACITY", c.HistoryCapacity)
	c.NotificationCapacity = getEnvInt("NOTIFICATION_CAPACITY", c.NotificationCapacity)
	c.MutationTimeout = getEnvDuration("MUTATION_TIMEOUT", c.MutationTimeout)
	c.CursorUpdateInterval = getEnvDuration("CURSOR_UPDATE_INTERVAL", c.CursorUpdateInterval)
	c.IdleAfter = getEnvDuration("PRESENCE_IDLE_AFTER", c.IdleAfter)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LocalAPIToken = getEnv("LOCAL_API_TOKEN", c.LocalAPIToken)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.CORSAllowedOrigins = strings.Split(origins, ",")
	}

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

var validate = validator.New()

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	if c.IsProduction() && c.LocalAPIToken == "" {
		return fmt.Errorf("LOCAL_API_TOKEN is required in production")
	}
	return nil
}

// Domain returns the session limits
func (c *Config) Domain() *domainconfig.DomainConfig {
	d := domainconfig.DefaultDomainConfig()
	d.HistoryCapacity = c.HistoryCapacity
	d.NotificationCapacity = c.NotificationCapacity
	d.MutationTimeout = c.MutationTimeout
	d.CursorUpdateInterval = c.CursorUpdateInterval
	d.IdleAfter = c.IdleAfter
	return d
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("250ms") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

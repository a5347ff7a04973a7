package core

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite postgres"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
}

type Session struct {
	Type         string        `yaml:"type" validate:"required,oneof=memory redis"`
	CookieName   string        `yaml:"cookieName" validate:"required"`
	SecureCookie bool          `yaml:"secureCookie"`
	TTL          time.Duration `yaml:"ttl" validate:"min=0"` // redis only, 0 keeps sessions until logout
	Redis        Redis         `yaml:"redis"`
}

type ServiceConfig struct {
	Port             int      `yaml:"port" validate:"min=0,max=65535"`
	LogLevel         string   `yaml:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat        string   `yaml:"logFormat" validate:"oneof=text json"`
	Database         Database `yaml:"database"`
	Session          Session  `yaml:"session"`
	QuotesPath       string   `yaml:"quotesPath" validate:"required"`
	MaxUploadSize    string   `yaml:"maxUploadSize" validate:"required"` // echo body limit notation, e.g. "10M"
	PasswordHashCost int      `yaml:"passwordHashCost" validate:"min=0"` // 0 selects bcrypt's default
}

// envReference matches ${VAR}. A bare $ is left alone so literal values keep it.
var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadConfig loads configuration from the specified YAML file.
// ${VAR} references in the database connection string and the redis
// address and password are replaced from the environment.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.expandEnv()

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

func (config *ServiceConfig) expandEnv() {
	config.Database.ConnectionString = expandEnvReferences(config.Database.ConnectionString)
	config.Session.Redis.Address = expandEnvReferences(config.Session.Redis.Address)
	config.Session.Redis.Password = expandEnvReferences(config.Session.Redis.Password)
}

func expandEnvReferences(value string) string {
	return envReference.ReplaceAllStringFunc(value, func(reference string) string {
		return os.Getenv(envReference.FindStringSubmatch(reference)[1])
	})
}

func (config *ServiceConfig) applyDefaults() {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.ConnectionString == "" && config.Database.Type == "sqlite" {
		config.Database.ConnectionString = "photobox.db"
	}
	if config.Session.Type == "" {
		config.Session.Type = "memory"
	}
	if config.Session.CookieName == "" {
		config.Session.CookieName = "photobox_session"
	}
	if config.QuotesPath == "" {
		config.QuotesPath = "static/art_quotes.csv"
	}
	if config.MaxUploadSize == "" {
		config.MaxUploadSize = "10M"
	}
}

func (config *ServiceConfig) validate() error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	// Redis settings only matter for the redis session store
	if config.Session.Type == "redis" && config.Session.Redis.Address == "" {
		return fmt.Errorf("session.redis.address is required for session type redis")
	}

	return nil
}

// SlogLevel maps logLevel onto slog's levels.
func (config *ServiceConfig) SlogLevel() slog.Level {
	switch strings.ToLower(config.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

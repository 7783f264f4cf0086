package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr               = ":8080"
	DefaultMaxOccupancy             = 140
	DefaultCapacityWarningThreshold = 0.9
	DefaultWaiverReminderDays       = 30
	DefaultShiftLocation            = "The Woodshed Orlando"
	DefaultLogDir                   = "logs"
	DefaultTimezone                 = "America/New_York"
)

// Config represents the application configuration
type Config struct {
	DatabaseURL              string  `yaml:"databaseURL,omitempty"`
	ListenAddr               string  `yaml:"listenAddr,omitempty" validate:"required"`
	JWTSecret                string  `yaml:"jwtSecret" validate:"required,min=16"`
	MaxOccupancy             int     `yaml:"maxOccupancy,omitempty" validate:"min=1"`
	CapacityWarningThreshold float64 `yaml:"capacityWarningThreshold,omitempty" validate:"gt=0,lte=1"`
	WaiverReminderDays       int     `yaml:"waiverReminderDays,omitempty" validate:"min=1,max=365"`
	DefaultShiftLocation     string  `yaml:"defaultShiftLocation,omitempty" validate:"required"`
	GmailSender              string  `yaml:"gmailSender,omitempty" validate:"omitempty,email"`
	RosterSheetID            string  `yaml:"rosterSheetID,omitempty"`
	SlackToken               string  `yaml:"slackToken,omitempty"`
	SlackChannel             string  `yaml:"slackChannel,omitempty" validate:"required_with=SlackToken"`
	LogDir                   string  `yaml:"logDir,omitempty"`
	Timezone                 string  `yaml:"timezone,omitempty" validate:"required,timezone"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration with an environment suffix.
// For example, env="test" will look for "kinkos_config.test.yaml".
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with the venue defaults
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MaxOccupancy == 0 {
		c.MaxOccupancy = DefaultMaxOccupancy
	}
	if c.CapacityWarningThreshold == 0 {
		c.CapacityWarningThreshold = DefaultCapacityWarningThreshold
	}
	if c.WaiverReminderDays == 0 {
		c.WaiverReminderDays = DefaultWaiverReminderDays
	}
	if c.DefaultShiftLocation == "" {
		c.DefaultShiftLocation = DefaultShiftLocation
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
}

// Location is the venue's local time zone, used for rosters and CLI input
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// applyEnvOverrides lets deployment secrets live outside the config file
func (c *Config) applyEnvOverrides() error {
	envOverride(&c.DatabaseURL, "KINKOS_DATABASE_URL")
	envOverride(&c.JWTSecret, "KINKOS_JWT_SECRET")
	envOverride(&c.SlackToken, "KINKOS_SLACK_TOKEN")

	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.ListenAddr = ":" + port
	}
	return nil
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// Validate validates the configuration struct
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// findConfigFile searches for kinkos_config.<env>.yaml, then kinkos_config.yaml,
// in the current directory and home directory
func findConfigFile(env string) (string, error) {
	if env != "" {
		if path, err := findFile("kinkos_config." + env + ".yaml"); err == nil {
			return path, nil
		}
	}
	return findFile("kinkos_config.yaml")
}

// findFile looks for name in the current directory, then the home directory
func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}

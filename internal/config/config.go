package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"studioline/internal/domain"
)

// Config models studioline.yml.
type Config struct {
	Auth struct {
		// TokenTTLHours bounds the trust window of issued bearer tokens.
		TokenTTLHours int `yaml:"token_ttl_hours"`
		BcryptCost    int `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Defaults struct {
		TaskPriority string `yaml:"task_priority"`
	} `yaml:"defaults"`
	Staff struct {
		Roles []string `yaml:"roles"`
	} `yaml:"staff"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Path returns the config file location for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "studioline.yml")
}

// Default returns the built-in platform configuration.
func Default() *Config {
	c := &Config{}
	c.Auth.TokenTTLHours = 24 * 7
	c.Auth.BcryptCost = 10
	c.Defaults.TaskPriority = domain.PriorityMedium
	c.Staff.Roles = []string{
		string(domain.RoleAdmin),
		string(domain.RoleManager),
		string(domain.RoleEditor),
		string(domain.RoleDesigner),
		string(domain.RoleVideoShooter),
	}
	return c
}

// Load reads config from the workspace, falling back to defaults when the
// file is absent.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates raw config bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("config.auth.token_ttl_hours must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("config.auth.bcrypt_cost out of range")
	}
	if !domain.ValidPriority(c.Defaults.TaskPriority) {
		return fmt.Errorf("config.defaults.task_priority %q is not a known priority", c.Defaults.TaskPriority)
	}
	if len(c.Staff.Roles) == 0 {
		return fmt.Errorf("config.staff.roles is required")
	}
	hasAdmin := false
	for _, r := range c.Staff.Roles {
		if !domain.ValidStaffRole(r) {
			return fmt.Errorf("config.staff.roles contains unknown role %q", r)
		}
		if r == string(domain.RoleAdmin) {
			hasAdmin = true
		}
	}
	if !hasAdmin {
		return fmt.Errorf("config.staff.roles must include admin")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// ToYAML renders the config for `sl config show`.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the worklog server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Board    BoardConfig    `yaml:"board"`
	Shifts   ShiftsConfig   `yaml:"shifts"`
	Jira     JiraConfig     `yaml:"jira"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// DevTokens enables the /api/auth/token endpoint that mints a JWT for
	// any email. Meant for local development only.
	DevTokens bool `yaml:"dev_tokens"`
}

type BoardConfig struct {
	// CacheTTLSeconds bounds how long an assembled board stays cached
	// before the next read goes back to storage.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	// LoaderWindowSeconds is the staleness window for the soft-TTL board
	// loader: repeat loads inside the window reuse the in-memory board.
	LoaderWindowSeconds int `yaml:"loader_window_seconds"`
}

type ShiftsConfig struct {
	// DefaultCode is assigned when an uploaded schedule contains a shift
	// code that is not defined for the project/team.
	DefaultCode string `yaml:"default_code"`
}

type JiraConfig struct {
	BaseURL      string `yaml:"base_url"`
	Email        string `yaml:"email"`
	APIToken     string `yaml:"api_token"`
	JQL          string `yaml:"jql"`
	ProjectID    string `yaml:"project_id"`
	TeamID       string `yaml:"team_id"`
	InboxColumn  string `yaml:"inbox_column"`
	SyncSchedule string `yaml:"sync_schedule"`
}

// Enabled reports whether JIRA ingestion is configured.
func (j JiraConfig) Enabled() bool {
	return j.BaseURL != "" && j.APIToken != ""
}

// CacheTTL returns the board cache TTL as a duration.
func (b BoardConfig) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLSeconds) * time.Second
}

// LoaderWindow returns the soft-TTL loader window as a duration.
func (b BoardConfig) LoaderWindow() time.Duration {
	return time.Duration(b.LoaderWindowSeconds) * time.Second
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Server.Port = "3001"
	c.Server.AllowedOrigins = []string{"*"}
	c.Database.Path = "./worklog.db"
	c.Board.CacheTTLSeconds = 300
	c.Board.LoaderWindowSeconds = 30
	c.Shifts.DefaultCode = "G"
	c.Jira.SyncSchedule = "@every 10m"
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("WORKLOG_DB")); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("WORKLOG_DEV_TOKENS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Auth.DevTokens = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("JIRA_BASE_URL")); v != "" {
		c.Jira.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("JIRA_EMAIL")); v != "" {
		c.Jira.Email = v
	}
	if v := strings.TrimSpace(os.Getenv("JIRA_API_TOKEN")); v != "" {
		c.Jira.APIToken = v
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set JWT_SECRET)")
	}
	if c.Board.LoaderWindowSeconds < 0 || c.Board.CacheTTLSeconds <= 0 {
		return fmt.Errorf("board cache/loader windows must be positive")
	}
	if c.Shifts.DefaultCode == "" {
		return fmt.Errorf("shifts.default_code is required")
	}
	return nil
}

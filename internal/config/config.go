// Package config loads and validates the dispatcher's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Broker provider names recognised in account configs.
const (
	ProviderFinam   = "finam"
	ProviderTinvest = "tinvest"
)

// DefaultListenAddr is used when server.listen_addr is unset.
const DefaultListenAddr = ":8080"

// DefaultWorkers is used when dispatcher.workers is unset.
const DefaultWorkers = 10

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Telegram   TelegramConfig           `yaml:"telegram"`
	Dispatcher DispatcherConfig         `yaml:"dispatcher"`
	Accounts   map[string]AccountConfig `yaml:"accounts"`
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"` // debug | info | warn | error
}

// TelegramConfig defines where notifications go. Empty means disabled.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"` // numeric chat id or @channel name
}

// Enabled reports whether a Telegram notifier should be constructed.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" || t.ChatID != ""
}

// DispatcherConfig defines queue processing settings.
type DispatcherConfig struct {
	Workers int `yaml:"workers"`
}

// AccountConfig defines one trading account.
type AccountConfig struct {
	Broker BrokerConfig `yaml:"broker"`
}

// BrokerConfig selects and configures the broker behind one account.
type BrokerConfig struct {
	Name    string         `yaml:"name"` // finam | tinvest
	Finam   *FinamConfig   `yaml:"finam"`
	Tinvest *TinvestConfig `yaml:"tinvest"`
}

// FinamConfig holds Finam Trade API credentials.
type FinamConfig struct {
	Token     string `yaml:"token"`
	AccountID string `yaml:"account_id"`
}

// TinvestConfig holds T-Invest API credentials.
type TinvestConfig struct {
	Token       string `yaml:"token"`
	AccountID   string `yaml:"account_id"`
	SandboxMode bool   `yaml:"sandbox_mode"`
}

// Load reads and parses the configuration file from the specified path.
// Environment variable references in the file ($VAR or ${VAR}) are
// expanded before parsing.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = DefaultWorkers
	}
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Server.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("server.log_level %q is not a known level", c.Server.LogLevel)
	}

	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("dispatcher.workers must be positive")
	}

	if c.Telegram.Enabled() {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram.chat_id is set")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
		}
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}
	for name, account := range c.Accounts {
		if err := account.validate(name); err != nil {
			return err
		}
	}

	return nil
}

func (a AccountConfig) validate(name string) error {
	switch a.Broker.Name {
	case ProviderFinam:
		if a.Broker.Finam == nil {
			return fmt.Errorf("accounts.%s.broker.finam section is required for broker %q", name, ProviderFinam)
		}
		if a.Broker.Finam.Token == "" {
			return fmt.Errorf("accounts.%s.broker.finam.token is required", name)
		}
		if a.Broker.Finam.AccountID == "" {
			return fmt.Errorf("accounts.%s.broker.finam.account_id is required", name)
		}
	case ProviderTinvest:
		if a.Broker.Tinvest == nil {
			return fmt.Errorf("accounts.%s.broker.tinvest section is required for broker %q", name, ProviderTinvest)
		}
		if a.Broker.Tinvest.Token == "" {
			return fmt.Errorf("accounts.%s.broker.tinvest.token is required", name)
		}
		if a.Broker.Tinvest.AccountID == "" {
			return fmt.Errorf("accounts.%s.broker.tinvest.account_id is required", name)
		}
	case "":
		return fmt.Errorf("accounts.%s.broker.name is required", name)
	default:
		return fmt.Errorf("accounts.%s.broker.name %q is not supported (want %q or %q)",
			name, a.Broker.Name, ProviderFinam, ProviderTinvest)
	}
	return nil
}

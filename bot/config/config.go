// Package config loads the airdrop bot configuration: the shared core
// settings plus storage and campaign parameters.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/airdropbot/bot/verify"
	coreconfig "github.com/m3rciful/airdropbot/core/config"
	coredatabase "github.com/m3rciful/airdropbot/core/database"
)

const (
	// StoragePostgres keeps users in Postgres.
	StoragePostgres = "postgres"
	// StorageMemory keeps users in process memory; data is lost on restart.
	StorageMemory = "memory"

	defaultReferralReward = "0.5"
	defaultSignupReward   = "1"
)

// StorageConfig selects the user store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// TaskLink is one task shown in the task prompt.
type TaskLink struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// CampaignConfig holds the airdrop parameters.
type CampaignConfig struct {
	Name           string `yaml:"name" envconfig:"CAMPAIGN_NAME"`
	ReferralReward string `yaml:"referral_reward" envconfig:"REFERRAL_REWARD"`
	SignupReward   string `yaml:"signup_reward" envconfig:"SIGNUP_REWARD"`
	// RequiredChats lists the chats a user must join, as numeric ids or
	// @usernames. The bot must be an administrator in each of them.
	RequiredChats        []string   `yaml:"required_chats" envconfig:"REQUIRED_CHATS"`
	VerifyTimeoutSeconds int        `yaml:"verify_timeout_seconds" envconfig:"VERIFY_TIMEOUT_SECONDS"`
	Tasks                []TaskLink `yaml:"tasks" ignored:"true"`
	// BotUsername overrides the username used in referral links.
	BotUsername string `yaml:"bot_username" envconfig:"BOT_USERNAME"`

	referral decimal.Decimal
	signup   decimal.Decimal
	chats    []verify.ChatRef
}

// Referral returns the parsed referral reward.
func (c CampaignConfig) Referral() decimal.Decimal { return c.referral }

// Signup returns the parsed signup reward.
func (c CampaignConfig) Signup() decimal.Decimal { return c.signup }

// Chats returns the parsed required chats.
func (c CampaignConfig) Chats() []verify.ChatRef { return append([]verify.ChatRef(nil), c.chats...) }

// VerifyTimeout returns the membership check deadline.
func (c CampaignConfig) VerifyTimeout() time.Duration {
	return time.Duration(c.VerifyTimeoutSeconds) * time.Second
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Campaign CampaignConfig      `yaml:"campaign"`
}

// CoreConfig exposes the embedded core settings.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// UsesDatabase reports whether the Postgres store is selected.
func (c *Config) UsesDatabase() bool {
	return c.Storage.Driver == StoragePostgres
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults in place.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch cfg.Storage.Driver {
	case "":
		cfg.Storage.Driver = StoragePostgres
		fallthrough
	case StoragePostgres:
		if err := cfg.Database.Normalize(); err != nil {
			return err
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", cfg.Storage.Driver)
	}

	return normalizeCampaign(&cfg.Campaign)
}

func normalizeCampaign(c *CampaignConfig) error {
	var err error
	if c.referral, err = parseReward("campaign.referral_reward", c.ReferralReward, defaultReferralReward); err != nil {
		return err
	}
	if c.signup, err = parseReward("campaign.signup_reward", c.SignupReward, defaultSignupReward); err != nil {
		return err
	}

	c.chats = c.chats[:0]
	for _, raw := range c.RequiredChats {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ref, err := verify.ParseChatRef(raw)
		if err != nil {
			return fmt.Errorf("campaign.required_chats: %w", err)
		}
		c.chats = append(c.chats, ref)
	}

	if c.VerifyTimeoutSeconds < 0 {
		return errors.New("campaign.verify_timeout_seconds must be >= 0")
	}
	if c.VerifyTimeoutSeconds == 0 {
		c.VerifyTimeoutSeconds = int(verify.DefaultTimeout / time.Second)
	}

	for i, task := range c.Tasks {
		if strings.TrimSpace(task.Title) == "" {
			return fmt.Errorf("campaign.tasks[%d]: title is required", i)
		}
		if task.URL == "" {
			continue
		}
		if u, err := url.Parse(task.URL); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			return fmt.Errorf("campaign.tasks[%d]: invalid url %q", i, task.URL)
		}
	}
	c.BotUsername = strings.TrimPrefix(strings.TrimSpace(c.BotUsername), "@")
	return nil
}

func parseReward(name, raw, def string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be >= 0", name)
	}
	return d, nil
}

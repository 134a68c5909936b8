package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/airdropbot/bot/verify"
	coreconfig "github.com/m3rciful/airdropbot/core/config"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  admin_ids: [11, 22]
logging:
  level: debug
storage:
  driver: memory
campaign:
  name: Godyence
  referral_reward: "0.25"
  required_chats: ["@airdrop_group", "-1001234567890"]
  tasks:
    - title: Join our Telegram group
      url: https://t.me/airdrop_group
    - title: Follow us on X
      url: https://x.com/airdrop
  bot_username: "@airdrop_bot"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{11, 22}, cfg.Telegram.AdminIDs)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())

	assert.False(t, cfg.UsesDatabase())
	assert.True(t, cfg.Campaign.Referral().Equal(decimal.RequireFromString("0.25")))
	assert.True(t, cfg.Campaign.Signup().Equal(decimal.NewFromInt(1)))
	assert.Equal(t, []verify.ChatRef{"@airdrop_group", "-1001234567890"}, cfg.Campaign.Chats())
	assert.Equal(t, 5*time.Second, cfg.Campaign.VerifyTimeout())
	assert.Len(t, cfg.Campaign.Tasks, 2)
	assert.Equal(t, "airdrop_bot", cfg.Campaign.BotUsername)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("ADMIN_IDS", "5,6")
	t.Setenv("REFERRAL_REWARD", "2.5")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "999:env", cfg.Telegram.Token)
	assert.Equal(t, []int64{5, 6}, cfg.Telegram.AdminIDs)
	assert.True(t, cfg.Campaign.Referral().Equal(decimal.RequireFromString("2.5")))
}

func TestNormalizeDefaultsToPostgres(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Database.User = "bot"
	cfg.Database.Name = "airdrop"
	require.NoError(t, Normalize(cfg))
	assert.True(t, cfg.UsesDatabase())
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.True(t, cfg.Campaign.Referral().Equal(decimal.RequireFromString("0.5")))
}

func TestNormalizeRejects(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Telegram.Token = "t"
		cfg.Storage.Driver = StorageMemory
		return cfg
	}
	cases := map[string]func(*Config){
		"bad driver":     func(c *Config) { c.Storage.Driver = "mongo" },
		"postgres no db": func(c *Config) { c.Storage.Driver = StoragePostgres },
		"bad reward":     func(c *Config) { c.Campaign.ReferralReward = "lots" },
		"negative":       func(c *Config) { c.Campaign.SignupReward = "-1" },
		"bad chat":       func(c *Config) { c.Campaign.RequiredChats = []string{"group name"} },
		"bad timeout":    func(c *Config) { c.Campaign.VerifyTimeoutSeconds = -1 },
		"task no title":  func(c *Config) { c.Campaign.Tasks = []TaskLink{{URL: "https://t.me/x"}} },
		"task bad url":   func(c *Config) { c.Campaign.Tasks = []TaskLink{{Title: "x", URL: "t.me/x"}} },
		"no token":       func(c *Config) { c.Telegram.Token = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, Normalize(cfg))
		})
	}
	assert.Error(t, Normalize(nil))
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var envNames = []string{
	"APP_ENV", "PORT", "BOT_TOKEN", "WEBHOOK_URL", "WEBHOOK_SECRET", "API_TOKEN",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "ORACLE_TIMEOUT", "MAX_TOKENS",
	"DB_NAME", "STATE_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"ORDER_FORWARD_CHAT_ID", "OWNER_USERNAME", "MANAGER_USER_IDS",
	"MAX_TURNS", "ORDER_DUP_WINDOW", "STATE_RETENTION_DAYS",
	"CRYPTO_WALLET", "CRYPTO_UAH_RATE", "CRYPTO_FEE_USD",
	"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
	}
}

func TestNewConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestNewConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("API_TOKEN", " 0123456789abcdef ")
	t.Setenv("STATE_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ORDER_FORWARD_CHAT_ID", "-100500")
	t.Setenv("OWNER_USERNAME", "@Boss")
	t.Setenv("MANAGER_USER_IDS", "11, 22,33")
	t.Setenv("ORDER_DUP_WINDOW", "15m")
	t.Setenv("CRYPTO_UAH_RATE", "40.25")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, BackendRedis, cfg.StateBackend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, int64(-100500), cfg.OrderForwardChatID)
	assert.Equal(t, "Boss", cfg.OwnerUsername)
	assert.Equal(t, []int64{11, 22, 33}, cfg.ManagerIDs)
	assert.Equal(t, 15*time.Minute, cfg.DupWindow)
	assert.Equal(t, 40.25, cfg.CryptoUAHRate)
	assert.Equal(t, "0123456789abcdef", cfg.APIToken)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigCollectsParseErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_TURNS", "many")
	t.Setenv("ORDER_DUP_WINDOW", "twenty")
	t.Setenv("MANAGER_USER_IDS", "1,x")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.Contains(t, err.Error(), "MAX_TURNS")
	assert.Contains(t, err.Error(), "ORDER_DUP_WINDOW")
	assert.Contains(t, err.Error(), "MANAGER_USER_IDS")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.StateBackend = "postgres"
	cfg.MaxTurns = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 6)
	assert.Contains(t, err.Error(), "API_TOKEN")

	cfg = Default()
	cfg.Token = "t"
	cfg.OpenAIKey = "k"
	cfg.OrderForwardChatID = -1
	cfg.APIToken = "short"
	require.Error(t, cfg.Validate())

	cfg.APIToken = "0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 1, ,2 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = ParseIDList("3,abc,4")
	assert.Error(t, err)
	assert.Equal(t, []int64{3, 4}, ids)
}

func TestManagerAndOwner(t *testing.T) {
	cfg := Default()
	cfg.ManagerIDs = []int64{5}
	cfg.OwnerUsername = "boss"

	assert.True(t, cfg.IsManager(5))
	assert.False(t, cfg.IsManager(6))
	assert.True(t, cfg.IsOwner("@BOSS"))
	assert.False(t, cfg.IsOwner("someone"))
	assert.False(t, cfg.IsOwner(""))
}

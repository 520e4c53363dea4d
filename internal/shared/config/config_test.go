package config

import (
	"testing"
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	assert.ErrorIs(t, err, errors.ErrMissingBotToken)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.telegram.org", cfg.TelegramAPIURL)
	assert.Equal(t, "./data", cfg.StoragePath)
	assert.Equal(t, 300*time.Second, cfg.RefreshInterval())
	assert.Equal(t, "https://danbooru.donmai.us", cfg.DanbooruURL)
	assert.Equal(t, int64(DefaultExamplePostID), cfg.ExamplePostID)
	assert.Equal(t, 100, cfg.FetchLimit)
	assert.Equal(t, AppEnvProduction, cfg.AppEnv)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 32, cfg.DownloadCacheSize)
	assert.Equal(t, 200, cfg.DeliveryLogSize)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("UPDATE_INTERVAL", "60")
	t.Setenv("ALLOWED_USERS", "1, 2,abc,3")
	t.Setenv("CHAT_IDS", "-100123")
	t.Setenv("TRACK_LAST_SEEN", "true")
	t.Setenv("SEARCH_TAGS", "yuri rating:general")
	t.Setenv("DANBOORU_URL", "https://safebooru.donmai.us/")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("GRACE_PERIOD", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.RefreshInterval())
	assert.Equal(t, []int64{1, 2, 3}, cfg.AllowedUsers)
	assert.Equal(t, []int64{-100123}, cfg.ChatIDs)
	assert.True(t, cfg.TrackLastSeen)
	assert.Equal(t, "yuri rating:general", cfg.SearchTags)
	assert.Equal(t, "https://safebooru.donmai.us", cfg.DanbooruURL)
	assert.Equal(t, AppEnvDevelopment, cfg.AppEnv)
	assert.Equal(t, 2*time.Minute, cfg.GraceDuration())
}

func TestLoadRejectsInvalidFetchLimit(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("FETCH_LIMIT", "500")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []int64{}, ParseIDs(""))
	assert.Equal(t, []int64{10, -20}, ParseIDs("10,-20"))
	assert.Equal(t, []int64{5}, ParseIDs(" ,5, "))
}

func TestParseAppEnv(t *testing.T) {
	env, err := ParseAppEnv("LOCAL")
	require.NoError(t, err)
	assert.Equal(t, AppEnvLocal, env)

	_, err = ParseAppEnv("staging")
	assert.ErrorIs(t, err, ErrInvalidAppEnv)
}

func TestTagFilter(t *testing.T) {
	cfg := &Config{PostTagFilter: "yuri -guro  -  solo -loli"}

	required, banned := cfg.TagFilter()
	assert.Equal(t, []string{"yuri", "solo"}, required)
	assert.Equal(t, []string{"guro", "loli"}, banned)

	required, banned = (&Config{}).TagFilter()
	assert.Empty(t, required)
	assert.Empty(t, banned)
}

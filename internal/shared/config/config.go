package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// DefaultExamplePostID is the post rendered by "Send example post" in the template editor.
const DefaultExamplePostID = 4950458

type Config struct {
	TelegramBotToken string  `koanf:"telegram_bot_token"`
	TelegramAPIURL   string  `koanf:"telegram_api_url"`
	StoragePath      string  `koanf:"storage_path"`
	HTTPPort         string  `koanf:"http_port"`
	UpdateInterval   int     `koanf:"update_interval"`
	AllowedUsers     []int64 `koanf:"-"`
	AppEnv           AppEnv  `koanf:"app_env"`

	DanbooruURL      string  `koanf:"danbooru_url"`
	DanbooruUsername string  `koanf:"danbooru_username"`
	DanbooruAPIKey   string  `koanf:"danbooru_api_key"`
	SearchTags       string  `koanf:"search_tags"`
	PostTagFilter    string  `koanf:"post_tag_filter"`
	TrackLastSeen    bool    `koanf:"track_last_seen"`
	GracePeriod      int     `koanf:"grace_period"`
	FetchLimit       int     `koanf:"fetch_limit"`
	ChatIDs          []int64 `koanf:"-"`
	ExamplePostID    int64   `koanf:"example_post_id"`

	DownloadCacheTTL  int `koanf:"download_cache_ttl"`
	DownloadCacheSize int `koanf:"download_cache_size"`
	DeliveryLogSize   int `koanf:"delivery_log_size"`
}

// RefreshInterval returns UpdateInterval as a duration
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Second
}

// TagFilter splits post_tag_filter into required tags and "-"-prefixed banned tags
func (c *Config) TagFilter() (required, banned []string) {
	for _, tag := range strings.Fields(c.PostTagFilter) {
		if name, ok := strings.CutPrefix(tag, "-"); ok {
			if name != "" {
				banned = append(banned, name)
			}
			continue
		}
		required = append(required, tag)
	}
	return required, banned
}

// CacheTTL returns DownloadCacheTTL as a duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.DownloadCacheTTL) * time.Second
}

// GraceDuration returns GracePeriod as a duration
func (c *Config) GraceDuration() time.Duration {
	return time.Duration(c.GracePeriod) * time.Second
}

var defaults = map[string]any{
	"telegram_api_url": "https://api.telegram.org",
	"storage_path":     "./data",
	"http_port":        "8080",
	"update_interval":  300,
	"app_env":          "production",
	"danbooru_url":     "https://danbooru.donmai.us",
	"grace_period":     0,
	"fetch_limit":      100,
	"example_post_id":  DefaultExamplePostID,

	"download_cache_ttl":  600,
	"download_cache_size": 32,
	"delivery_log_size":   200,
}

func Load() (*Config, error) {
	// A missing .env is fine, the environment and config files still apply.
	_ = godotenv.Load()

	k := koanf.New(".")

	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Environment variables override config file values
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}
	cfg.DanbooruURL = strings.TrimRight(cfg.DanbooruURL, "/")

	// Lists may arrive as comma-separated strings from the environment
	cfg.AllowedUsers = parseIDList(k.Get("allowed_users"))
	cfg.ChatIDs = parseIDList(k.Get("chat_ids"))

	if appEnvStr := k.String("app_env"); appEnvStr != "" {
		if env, err := ParseAppEnv(appEnvStr); err == nil {
			cfg.AppEnv = env
		} else {
			cfg.AppEnv = AppEnvProduction
		}
	} else {
		cfg.AppEnv = AppEnvProduction
	}

	if cfg.TelegramBotToken == "" {
		return nil, errors.ErrMissingBotToken
	}
	if cfg.UpdateInterval <= 0 {
		return nil, oops.With("update_interval", cfg.UpdateInterval).Errorf("update_interval must be positive")
	}
	if cfg.FetchLimit <= 0 || cfg.FetchLimit > 200 {
		return nil, oops.With("fetch_limit", cfg.FetchLimit).Errorf("fetch_limit must be within 1..200")
	}
	if cfg.ExamplePostID <= 0 {
		return nil, oops.With("example_post_id", cfg.ExamplePostID).Errorf("example_post_id must be positive")
	}

	return &cfg, nil
}

// parseIDList accepts a comma-separated string or a list of numbers
func parseIDList(value any) []int64 {
	switch v := value.(type) {
	case string:
		return ParseIDs(v)
	case []interface{}:
		return lo.FilterMap(v, func(item interface{}, _ int) (int64, bool) {
			switch val := item.(type) {
			case int64:
				return val, true
			case int:
				return int64(val), true
			case float64:
				return int64(val), true
			case string:
				ids := ParseIDs(val)
				if len(ids) == 1 {
					return ids[0], true
				}
				return 0, false
			default:
				return 0, false
			}
		})
	default:
		return []int64{}
	}
}

// ParseIDs parses comma-separated chat or user IDs string into []int64
func ParseIDs(s string) []int64 {
	if s == "" {
		return []int64{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (int64, bool) {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, false
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			return id, true
		}
		return 0, false
	})
}

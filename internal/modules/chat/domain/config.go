package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// DefaultTemplate is the caption template of a freshly created chat
const DefaultTemplate = "Posted at: {posted_at}\nID: {id}\nTags: {tags}\nArtists: {artists}\nCharacters: {characters}"

// SubscriptionGroup is a named include/exclude tag filter
type SubscriptionGroup struct {
	Name             string   `json:"name"`
	Include          []string `json:"include"`
	Exclude          []string `json:"exclude"`
	IncludeFullMatch bool     `json:"include_full_match"`
	ExcludeFullMatch bool     `json:"exclude_full_match"`
}

// NewSubscriptionGroup creates an empty group that lets every post through
func NewSubscriptionGroup(name string) *SubscriptionGroup {
	return &SubscriptionGroup{
		Name:    name,
		Include: []string{},
		Exclude: []string{},
	}
}

// Config is the per-chat settings document, persisted as one JSON file
type Config struct {
	ChatID                           int64                `json:"chat_id"`
	ShowDanbooruButton               bool                 `json:"show_danbooru_button"`
	ShowSourceButton                 bool                 `json:"show_source_button"`
	ShowDirectButton                 bool                 `json:"show_direct_button"`
	Template                         string               `json:"template"`
	SendAsFilesThreshold             postDomain.Rating    `json:"send_as_files_threshold"`
	SubscriptionGroups               []*SubscriptionGroup `json:"subscription_groups"`
	SubscriptionGroupsCombineWithAll bool                 `json:"subscription_groups_combine_with_all"`
	Subscribed                       bool                 `json:"subscribed"`
}

// NewConfig returns the defaults a chat gets on its first interaction
func NewConfig(chatID int64) *Config {
	return &Config{
		ChatID:             chatID,
		ShowDanbooruButton: true,
		ShowSourceButton:   true,
		ShowDirectButton:   true,
		Template:           DefaultTemplate,
		SubscriptionGroups: []*SubscriptionGroup{},
	}
}

// ParseConfig decodes and validates an exported configuration
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, oops.With("context", "failed to decode chat configuration").Wrap(invalid(err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SubscriptionGroups == nil {
		cfg.SubscriptionGroups = []*SubscriptionGroup{}
	}
	return cfg, nil
}

// Validate checks the invariants an imported or edited configuration must hold
func (c *Config) Validate() error {
	if c.SendAsFilesThreshold != postDomain.RatingUnset && c.SendAsFilesThreshold.Level() < 0 {
		return oops.With("threshold", string(c.SendAsFilesThreshold)).Wrap(errors.ErrInvalidConfig)
	}
	if err := ValidateTemplate(c.Template); err != nil {
		return oops.With("context", "invalid template").Wrap(invalid(err))
	}

	seen := make(map[string]struct{}, len(c.SubscriptionGroups))
	for i, group := range c.SubscriptionGroups {
		if group == nil || strings.TrimSpace(group.Name) == "" {
			return oops.With("index", i, "context", "group without a name").Wrap(errors.ErrInvalidConfig)
		}
		if _, ok := seen[group.Name]; ok {
			return oops.With("group", group.Name, "context", "duplicate group name").Wrap(errors.ErrInvalidConfig)
		}
		seen[group.Name] = struct{}{}
	}
	return nil
}

// Group looks up a subscription group by name
func (c *Config) Group(name string) (*SubscriptionGroup, bool) {
	return lo.Find(c.SubscriptionGroups, func(g *SubscriptionGroup) bool {
		return g.Name == name
	})
}

// GroupNames lists group names in their configured order
func (c *Config) GroupNames() []string {
	return lo.Map(c.SubscriptionGroups, func(g *SubscriptionGroup, _ int) string {
		return g.Name
	})
}

// AddGroup appends a new empty group. Existing names are never overwritten.
func (c *Config) AddGroup(name string) (*SubscriptionGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.With("context", "group name is empty").Wrap(errors.ErrInvalidConfig)
	}
	if _, ok := c.Group(name); ok {
		return nil, oops.With("group", name).Wrap(errors.ErrGroupExists)
	}

	group := NewSubscriptionGroup(name)
	c.SubscriptionGroups = append(c.SubscriptionGroups, group)
	return group, nil
}

// RemoveGroup deletes the named group and reports whether it existed
func (c *Config) RemoveGroup(name string) bool {
	before := len(c.SubscriptionGroups)
	c.SubscriptionGroups = lo.Reject(c.SubscriptionGroups, func(g *SubscriptionGroup, _ int) bool {
		return g.Name == name
	})
	return len(c.SubscriptionGroups) != before
}

// Clone returns a deep copy safe to mutate independently
func (c *Config) Clone() *Config {
	clone := *c
	clone.SubscriptionGroups = lo.Map(c.SubscriptionGroups, func(g *SubscriptionGroup, _ int) *SubscriptionGroup {
		group := *g
		group.Include = append([]string{}, g.Include...)
		group.Exclude = append([]string{}, g.Exclude...)
		return &group
	})
	return &clone
}

// CombinePolicy names how group results are combined
func (c *Config) CombinePolicy() string {
	if c.SubscriptionGroupsCombineWithAll {
		return "ALL"
	}
	return "ANY"
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
}

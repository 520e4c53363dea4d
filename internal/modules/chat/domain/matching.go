package domain

import (
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/samber/lo"
)

// PostAllowed decides whether a post passes the chat's subscription groups.
// A chat without groups accepts everything.
func PostAllowed(cfg *Config, post *postDomain.Post) bool {
	if len(cfg.SubscriptionGroups) == 0 {
		return true
	}

	tags := post.TagsWithRating()
	matches := func(g *SubscriptionGroup) bool {
		return GroupMatches(g, tags)
	}

	if cfg.SubscriptionGroupsCombineWithAll {
		return lo.EveryBy(cfg.SubscriptionGroups, matches)
	}
	return lo.SomeBy(cfg.SubscriptionGroups, matches)
}

// GroupMatches evaluates one group against a tag set. Exclusion always wins.
func GroupMatches(group *SubscriptionGroup, tags []string) bool {
	return included(group, tags) && !excluded(group, tags)
}

func included(group *SubscriptionGroup, tags []string) bool {
	if len(group.Include) == 0 {
		return true
	}
	if group.IncludeFullMatch {
		return lo.Every(tags, group.Include)
	}
	return lo.Some(tags, group.Include)
}

func excluded(group *SubscriptionGroup, tags []string) bool {
	if len(group.Exclude) == 0 {
		return false
	}
	if group.ExcludeFullMatch {
		return lo.Every(tags, group.Exclude)
	}
	return lo.Some(tags, group.Exclude)
}

// PostAboveThreshold reports whether the post must be sent as a plain document
func PostAboveThreshold(cfg *Config, post *postDomain.Post) bool {
	if !cfg.SendAsFilesThreshold.IsSet() || !post.Rating.IsSet() {
		return false
	}
	return post.Rating.Level() >= cfg.SendAsFilesThreshold.Level()
}

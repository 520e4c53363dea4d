package domain

import (
	"testing"

	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/stretchr/testify/assert"
)

func newPost(tags string, rating postDomain.Rating) *postDomain.Post {
	return &postDomain.Post{ID: 1, TagString: tags, Rating: rating}
}

func configWith(groups ...*SubscriptionGroup) *Config {
	cfg := NewConfig(1)
	cfg.SubscriptionGroups = groups
	return cfg
}

func TestPostAllowedWithoutGroups(t *testing.T) {
	cfg := NewConfig(1)
	for _, post := range []*postDomain.Post{
		newPost("", postDomain.RatingUnset),
		newPost("a b c", postDomain.RatingExplicit),
		newPost("rating:general", postDomain.RatingGeneral),
	} {
		assert.True(t, PostAllowed(cfg, post))
	}
}

func TestPostAllowedSingleGroup(t *testing.T) {
	tests := []struct {
		name    string
		group   SubscriptionGroup
		tags    string
		allowed bool
	}{
		{"include any hit", SubscriptionGroup{Include: []string{"a"}}, "a b", true},
		{"include any miss", SubscriptionGroup{Include: []string{"a"}}, "b", false},
		{"include full partial", SubscriptionGroup{Include: []string{"a", "b"}, IncludeFullMatch: true}, "a", false},
		{"include full superset", SubscriptionGroup{Include: []string{"a", "b"}, IncludeFullMatch: true}, "a b c", true},
		{"empty include passes", SubscriptionGroup{}, "x", true},
		{"empty include full match passes", SubscriptionGroup{IncludeFullMatch: true}, "x", true},
		{"empty exclude full match never excludes", SubscriptionGroup{ExcludeFullMatch: true}, "x", true},
		{"exclude any", SubscriptionGroup{Exclude: []string{"gore"}}, "a gore", false},
		{"exclude full partial", SubscriptionGroup{Exclude: []string{"a", "b"}, ExcludeFullMatch: true}, "a c", true},
		{"exclude full all", SubscriptionGroup{Exclude: []string{"a", "b"}, ExcludeFullMatch: true}, "a b c", false},
		{"exclude dominates include", SubscriptionGroup{Include: []string{"a"}, Exclude: []string{"a"}}, "a", false},
		{"exclude dominates full match include", SubscriptionGroup{Include: []string{"a"}, IncludeFullMatch: true, Exclude: []string{"a"}}, "a b", false},
		{"rating tag included", SubscriptionGroup{Include: []string{"rating:general"}}, "a", true},
		{"rating tag excluded", SubscriptionGroup{Exclude: []string{"rating:general"}}, "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := tt.group
			group.Name = "g"
			cfg := configWith(&group)
			assert.Equal(t, tt.allowed, PostAllowed(cfg, newPost(tt.tags, postDomain.RatingGeneral)))
		})
	}
}

func TestPostAllowedCombinePolicy(t *testing.T) {
	matching := &SubscriptionGroup{Name: "g1", Include: []string{"a"}}
	failing := &SubscriptionGroup{Name: "g2", Include: []string{"z"}}
	post := newPost("a b", postDomain.RatingSensitive)

	cfg := configWith(matching, failing)
	assert.True(t, PostAllowed(cfg, post))

	cfg.SubscriptionGroupsCombineWithAll = true
	assert.False(t, PostAllowed(cfg, post))

	cfg.SubscriptionGroups = []*SubscriptionGroup{matching}
	assert.True(t, PostAllowed(cfg, post))
}

func TestPostAllowedScenario(t *testing.T) {
	cfg := configWith(&SubscriptionGroup{Name: "yuri", Include: []string{"yuri"}, Exclude: []string{}})
	post := newPost("1girl yuri solo", postDomain.RatingGeneral)

	assert.True(t, PostAllowed(cfg, post))
}

func TestPostAboveThreshold(t *testing.T) {
	t.Run("disabled threshold", func(t *testing.T) {
		cfg := NewConfig(1)
		for _, rating := range append(postDomain.Ratings, postDomain.RatingUnset) {
			assert.False(t, PostAboveThreshold(cfg, newPost("", rating)), rating)
		}
	})

	t.Run("unset rating", func(t *testing.T) {
		cfg := NewConfig(1)
		cfg.SendAsFilesThreshold = postDomain.RatingGeneral
		assert.False(t, PostAboveThreshold(cfg, newPost("", postDomain.RatingUnset)))
	})

	t.Run("questionable threshold", func(t *testing.T) {
		cfg := NewConfig(1)
		threshold, err := postDomain.ParseRating("questionable")
		assert.NoError(t, err)
		cfg.SendAsFilesThreshold = threshold

		explicit, _ := postDomain.ParseRating("rating:explicit")
		sensitive, _ := postDomain.ParseRating("rating:sensitive")
		assert.True(t, PostAboveThreshold(cfg, newPost("", explicit)))
		assert.False(t, PostAboveThreshold(cfg, newPost("", sensitive)))
	})

	t.Run("monotonic in rating", func(t *testing.T) {
		for _, threshold := range postDomain.Ratings {
			cfg := NewConfig(1)
			cfg.SendAsFilesThreshold = threshold
			seen := false
			for _, rating := range postDomain.Ratings {
				above := PostAboveThreshold(cfg, newPost("", rating))
				if seen {
					assert.True(t, above, "threshold %s rating %s", threshold, rating)
				}
				seen = seen || above
			}
			assert.True(t, seen)
		}
	})
}

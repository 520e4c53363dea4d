package domain

import (
	"encoding/json"
	"strings"

	"github.com/samber/oops"
)

// Rating is the content rating of a post. The zero value means unset.
type Rating string

const (
	RatingUnset        Rating = ""
	RatingGeneral      Rating = "general"
	RatingSensitive    Rating = "sensitive"
	RatingQuestionable Rating = "questionable"
	RatingExplicit     Rating = "explicit"
)

const ratingTagPrefix = "rating:"

// Ratings lists every rating ordered by level
var Ratings = []Rating{RatingGeneral, RatingSensitive, RatingQuestionable, RatingExplicit}

var ratingAliases = map[string]Rating{
	"g":            RatingGeneral,
	"general":      RatingGeneral,
	"s":            RatingSensitive,
	"sensitive":    RatingSensitive,
	"q":            RatingQuestionable,
	"questionable": RatingQuestionable,
	"e":            RatingExplicit,
	"explicit":     RatingExplicit,
}

// ParseRating accepts the API short form (g, s, q, e), the plain name and the
// "rating:<name>" tag form. An empty string yields RatingUnset.
func ParseRating(s string) (Rating, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RatingUnset, nil
	}
	if r, ok := ratingAliases[strings.TrimPrefix(s, ratingTagPrefix)]; ok {
		return r, nil
	}
	return RatingUnset, oops.With("rating", s).Errorf("unknown rating %q", s)
}

// Level orders ratings: general(0) < sensitive(1) < questionable(2) < explicit(3).
// Unset ratings report -1.
func (r Rating) Level() int {
	switch r {
	case RatingGeneral:
		return 0
	case RatingSensitive:
		return 1
	case RatingQuestionable:
		return 2
	case RatingExplicit:
		return 3
	default:
		return -1
	}
}

func (r Rating) IsSet() bool {
	return r.Level() >= 0
}

// Tag returns the pseudo tag used for matching, e.g. "rating:general"
func (r Rating) Tag() string {
	if !r.IsSet() {
		return ""
	}
	return ratingTagPrefix + string(r)
}

// Label is the human readable rating used in captions
func (r Rating) Label() string {
	if !r.IsSet() {
		return "unset"
	}
	return string(r)
}

func (r Rating) String() string {
	return string(r)
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = RatingUnset
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRating(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
)

const (
	// MaxCaptionTags bounds the number of general tags sampled into a caption
	MaxCaptionTags = 15

	postedAtLayout = "02/01/2006 at 15:04"
)

// Placeholders accepted in caption templates
var Placeholders = []string{"posted_at", "id", "tags", "artists", "characters", "copyright", "meta", "rating"}

var (
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_]+`)
	underscorePattern = regexp.MustCompile(`_{2,}`)
)

// Sampler picks up to n items out of tags without replacement
type Sampler func(tags []string, n int) []string

// RandomSampler is the sampler used for real captions
func RandomSampler(tags []string, n int) []string {
	return lo.Samples(tags, n)
}

// TemplateError describes a malformed caption template
type TemplateError struct {
	Offset int
	Field  string
	Reason string
}

func (e *TemplateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s %q at offset %d", errors.ErrInvalidTemplate, e.Reason, e.Field, e.Offset)
	}
	return fmt.Sprintf("%s: %s at offset %d", errors.ErrInvalidTemplate, e.Reason, e.Offset)
}

func (e *TemplateError) Unwrap() error {
	return errors.ErrInvalidTemplate
}

// SanitizeTag turns a booru tag into a hashtag. Tags with nothing left after
// cleanup yield an empty string.
func SanitizeTag(tag string) string {
	tag = nonWordPattern.ReplaceAllString(tag, "_")
	tag = underscorePattern.ReplaceAllString(tag, "_")
	tag = strings.Trim(tag, "_")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// SanitizeTags sanitizes every tag and drops the ones that end up empty
func SanitizeTags(tags []string) []string {
	return lo.FilterMap(tags, func(tag string, _ int) (string, bool) {
		sanitized := SanitizeTag(tag)
		return sanitized, sanitized != ""
	})
}

// SampleTags picks at most MaxCaptionTags distinct sanitized tags
func SampleTags(tags []string, sampler Sampler) []string {
	if sampler == nil {
		sampler = RandomSampler
	}
	return sampler(lo.Uniq(SanitizeTags(tags)), MaxCaptionTags)
}

// CaptionValues computes the placeholder values for a post
func CaptionValues(post *postDomain.Post, sampler Sampler) map[string]string {
	general := post.TagsGeneral()
	if len(general) == 0 && post.TagStringGeneral == "" {
		general = post.Tags()
	}
	join := func(tags []string) string {
		return strings.Join(lo.Uniq(SanitizeTags(tags)), ", ")
	}

	return map[string]string{
		"posted_at":  post.CreatedAt.Format(postedAtLayout),
		"id":         strconv.FormatInt(post.ID, 10),
		"tags":       strings.Join(SampleTags(general, sampler), ", "),
		"artists":    join(post.TagsArtist()),
		"characters": join(post.TagsCharacter()),
		"copyright":  join(post.TagsCopyright()),
		"meta":       join(post.TagsMeta()),
		"rating":     post.Rating.Label(),
	}
}

// FormatCaption renders the chat template for a post. Template errors are returned as is.
func FormatCaption(cfg *Config, post *postDomain.Post, sampler Sampler) (string, error) {
	return FormatTemplate(cfg.Template, CaptionValues(post, sampler))
}

// ValidateTemplate checks a template against the known placeholders
func ValidateTemplate(template string) error {
	values := lo.SliceToMap(Placeholders, func(name string) (string, string) {
		return name, ""
	})
	_, err := FormatTemplate(template, values)
	return err
}

// FormatTemplate substitutes {name} fields with values. Literal braces are
// written as {{ and }}. Unknown names and unbalanced braces fail.
func FormatTemplate(template string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", &TemplateError{Offset: i, Reason: "unclosed '{'"}
			}
			name := template[i+1 : i+1+end]
			if strings.ContainsRune(name, '{') {
				return "", &TemplateError{Offset: i, Field: name, Reason: "unexpected '{' in field name"}
			}
			value, ok := values[name]
			if !ok {
				return "", &TemplateError{Offset: i, Field: name, Reason: "unknown placeholder"}
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", &TemplateError{Offset: i, Reason: "single '}'"}
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

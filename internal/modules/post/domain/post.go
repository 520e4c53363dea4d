package domain

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Post is a read-only record fetched from the image board
type Post struct {
	ID                 int64     `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	TagString          string    `json:"tag_string"`
	TagStringGeneral   string    `json:"tag_string_general"`
	TagStringArtist    string    `json:"tag_string_artist"`
	TagStringCopyright string    `json:"tag_string_copyright"`
	TagStringCharacter string    `json:"tag_string_character"`
	TagStringMeta      string    `json:"tag_string_meta"`
	Rating             Rating    `json:"rating"`
	Source             string    `json:"source"`
	PixivID            int64     `json:"pixiv_id"`
	MD5                string    `json:"md5"`
	FileURL            string    `json:"file_url"`
	LargeFileURL       string    `json:"large_file_url"`
	PreviewFileURL     string    `json:"preview_file_url"`
	FileExt            string    `json:"file_ext"`
	FileSize           int64     `json:"file_size"`
	Width              int       `json:"image_width"`
	Height             int       `json:"image_height"`
	Score              int       `json:"score"`
	UpScore            int       `json:"up_score"`
	DownScore          int       `json:"down_score"`
	FavCount           int       `json:"fav_count"`
	IsBanned           bool      `json:"is_banned"`
	IsDeleted          bool      `json:"is_deleted"`
}

// rawPost mirrors the fields that decide whether a record is usable at all
type rawPost struct {
	ID        *int64     `json:"id"`
	CreatedAt *time.Time `json:"created_at"`
}

// DecodePost parses one API record. Records without an id are restricted or
// missing posts and yield errors.ErrRestrictedPost.
func DecodePost(data []byte) (*Post, error) {
	var raw rawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, oops.With("context", "failed to decode post").Wrap(err)
	}
	if raw.ID == nil {
		return nil, errors.ErrRestrictedPost
	}
	if raw.CreatedAt == nil {
		return nil, oops.With("post_id", *raw.ID).Errorf("post has no created_at")
	}

	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, oops.With("post_id", *raw.ID, "context", "failed to decode post").Wrap(err)
	}
	return &post, nil
}

// DecodePosts parses a list response. Restricted records are dropped silently,
// undecodable ones are logged and dropped.
func DecodePosts(data []byte) ([]*Post, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, oops.With("context", "failed to decode post list").Wrap(err)
	}

	posts := make([]*Post, 0, len(items))
	for _, item := range items {
		post, err := DecodePost(item)
		if err != nil {
			if stderrors.Is(err, errors.ErrRestrictedPost) {
				continue
			}
			slog.Warn("Skipping undecodable post", "error", err)
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func splitTags(s string) []string {
	return lo.Uniq(strings.Fields(s))
}

func (p *Post) Tags() []string          { return splitTags(p.TagString) }
func (p *Post) TagsGeneral() []string   { return splitTags(p.TagStringGeneral) }
func (p *Post) TagsArtist() []string    { return splitTags(p.TagStringArtist) }
func (p *Post) TagsCopyright() []string { return splitTags(p.TagStringCopyright) }
func (p *Post) TagsCharacter() []string { return splitTags(p.TagStringCharacter) }
func (p *Post) TagsMeta() []string      { return splitTags(p.TagStringMeta) }

// TagsWithRating returns the tag set extended with the rating pseudo tag
func (p *Post) TagsWithRating() []string {
	tags := p.Tags()
	if tag := p.Rating.Tag(); tag != "" && !lo.Contains(tags, tag) {
		tags = append(tags, tag)
	}
	return tags
}

func (p *Post) IsImage() bool {
	return lo.Contains([]string{"jpg", "jpeg", "png", "webp"}, p.ext())
}

func (p *Post) IsGif() bool {
	return p.ext() == "gif"
}

// IsVideo also covers zip posts that carry a video rendition
func (p *Post) IsVideo() bool {
	return lo.Contains([]string{"mp4", "webm", "mkv"}, p.BestFileExt())
}

// IsZip reports ugoira posts whose original file is a zip of frames
func (p *Post) IsZip() bool {
	return p.ext() == "zip"
}

func (p *Post) ext() string {
	return strings.ToLower(p.FileExt)
}

// IsBad is true for banned posts and for deleted posts with a poor vote ratio
func (p *Post) IsBad() bool {
	if p.IsBanned {
		return true
	}
	if !p.IsDeleted {
		return false
	}
	up := float64(lo.Ternary(p.UpScore == 0, 1, p.UpScore))
	down := math.Abs(float64(lo.Ternary(p.DownScore == 0, 1, p.DownScore)))
	return up/down < 2
}

// BestFileURL avoids zip containers in favour of the large (video) rendition
func (p *Post) BestFileURL() string {
	if strings.HasSuffix(strings.ToLower(p.FileURL), "zip") && p.LargeFileURL != "" {
		return p.LargeFileURL
	}
	return p.FileURL
}

// BestFileExt is the extension of the file behind BestFileURL
func (p *Post) BestFileExt() string {
	best := p.BestFileURL()
	if best == p.FileURL {
		return p.ext()
	}
	if i := strings.LastIndex(best, "."); i >= 0 && i < len(best)-1 {
		return strings.ToLower(best[i+1:])
	}
	return p.ext()
}

func (p *Post) Filename() string {
	return fmt.Sprintf("%d.%s", p.ID, p.BestFileExt())
}

// URL is the post page on the board at baseURL
func (p *Post) URL(baseURL string) string {
	return fmt.Sprintf("%s/posts/%d", strings.TrimRight(baseURL, "/"), p.ID)
}

// SourceURL prefers the pixiv page, then the raw source if it is a web URL
func (p *Post) SourceURL() string {
	if p.PixivID != 0 {
		return fmt.Sprintf("https://www.pixiv.net/artworks/%d", p.PixivID)
	}
	u, err := url.Parse(p.Source)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return p.Source
}

package service

import (
	"context"
	stderrors "errors"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	chatDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/domain"
	pollRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/repository"
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// maxBacklog bounds how many ids numeric mode walks in one cycle
const maxBacklog = 1000

// PostSource is the image board the poller reads from
type PostSource interface {
	Search(ctx context.Context, tags string, limit int) ([]*postDomain.Post, error)
	Get(ctx context.Context, id int64) (*postDomain.Post, error)
}

// Deliverer sends one post to one chat
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, cfg *chatDomain.Config, post *postDomain.Post) error
}

// Targets lists the chats polled posts go to
type Targets interface {
	Subscribers() ([]*chatDomain.Config, error)
}

// Poller discovers new posts and fans them out to subscribed chats
type Poller struct {
	cfg       *config.Config
	source    PostSource
	deliverer Deliverer
	targets   Targets
	repo      pollRepo.Repository
	now       func() time.Time

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	cursor      domain.Cursor
	hasCursor   bool
	tracker     *domain.Tracker
	lastRefresh time.Time
	lastResult  domain.Result
}

// New creates a new poller
func New(cfg *config.Config, source PostSource, deliverer Deliverer, targets Targets, repo pollRepo.Repository) *Poller {
	return &Poller{
		cfg:       cfg,
		source:    source,
		deliverer: deliverer,
		targets:   targets,
		repo:      repo,
		now:       time.Now,
		tracker:   domain.NewTracker(domain.TrackerSize),
	}
}

// Mode reports how new posts are discovered
func (p *Poller) Mode() domain.Mode {
	if p.cfg.SearchTags != "" {
		return domain.ModeSearch
	}
	return domain.ModeNumeric
}

// Posts loads the persisted state and returns the posts of one cycle. The
// sequence yields every processed id; the post is nil when it was skipped
// (restricted, unreadable or filtered out). It stops early when a post is
// still inside the grace period.
func (p *Poller) Posts(ctx context.Context) (iter.Seq2[int64, *postDomain.Post], error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	if p.Mode() == domain.ModeSearch {
		return p.searchPosts(ctx)
	}
	return p.numericPosts(ctx)
}

func (p *Poller) load() error {
	cursor, stored, err := p.repo.LoadCursor()
	if err != nil {
		return err
	}
	tracker, err := p.repo.LoadTracker()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = cursor
	p.hasCursor = stored
	p.tracker = tracker
	return nil
}

func (p *Poller) numericPosts(ctx context.Context) (iter.Seq2[int64, *postDomain.Post], error) {
	latest, err := p.source.Search(ctx, "", 1)
	if err != nil {
		return nil, oops.With("context", "failed to fetch latest post").Wrap(err)
	}
	if len(latest) == 0 {
		return emptySeq, nil
	}
	latestID := latest[0].ID

	if !p.cursorStored() {
		// first run: start from the newest post instead of replaying history
		p.advance(latestID)
		slog.Info("Initialized post cursor", "last_post_id", latestID)
		return emptySeq, nil
	}

	from := p.cursorID() + 1
	if from > latestID {
		return emptySeq, nil
	}
	if backlog := latestID - from + 1; backlog > maxBacklog {
		slog.Warn("Backlog too large, skipping ahead", "backlog", backlog, "last_post_id", from-1, "latest_post_id", latestID)
		from = latestID - int64(p.cfg.FetchLimit) + 1
	}

	batch, err := p.source.Search(ctx, "", int(min(latestID-from+1, int64(p.cfg.FetchLimit))))
	if err != nil {
		return nil, oops.With("context", "failed to fetch post batch").Wrap(err)
	}
	known := lo.SliceToMap(batch, func(post *postDomain.Post) (int64, *postDomain.Post) {
		return post.ID, post
	})

	return func(yield func(int64, *postDomain.Post) bool) {
		for id := from; id <= latestID; id++ {
			if ctx.Err() != nil {
				return
			}

			post, ok := known[id]
			if !ok {
				fetched, err := p.source.Get(ctx, id)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					if stderrors.Is(err, errors.ErrRestrictedPost) {
						slog.Info("Skipping restricted post", "post_id", id)
					} else {
						slog.Warn("Failed to fetch post", "post_id", id, "error", err)
					}
					if !yield(id, nil) {
						return
					}
					continue
				}
				post = fetched
			}

			if p.inGracePeriod(post) {
				// later posts are newer still
				slog.Debug("Post is inside the grace period", "post_id", id)
				return
			}
			if !p.acceptable(post) {
				post = nil
			}
			if !yield(id, post) {
				return
			}
		}
	}, nil
}

func (p *Poller) searchPosts(ctx context.Context) (iter.Seq2[int64, *postDomain.Post], error) {
	posts, err := p.source.Search(ctx, p.cfg.SearchTags, p.cfg.FetchLimit)
	if err != nil {
		return nil, oops.With("tags", p.cfg.SearchTags, "context", "failed to search posts").Wrap(err)
	}
	if len(posts) == 0 {
		return emptySeq, nil
	}

	if !p.cfg.TrackLastSeen && !p.cursorStored() {
		newest := lo.MaxBy(posts, func(a, b *postDomain.Post) bool { return a.ID > b.ID })
		p.advance(newest.ID)
		slog.Info("Initialized post cursor", "last_post_id", newest.ID)
		return emptySeq, nil
	}

	// results come newest first
	ordered := slices.Clone(posts)
	slices.Reverse(ordered)

	return func(yield func(int64, *postDomain.Post) bool) {
		for _, post := range ordered {
			if ctx.Err() != nil {
				return
			}
			if p.seen(post.ID) {
				continue
			}

			candidate := post
			if !p.acceptable(post) {
				candidate = nil
			}
			if !yield(post.ID, candidate) {
				return
			}
		}
	}, nil
}

func emptySeq(func(int64, *postDomain.Post) bool) {}

func (p *Poller) seen(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg.TrackLastSeen {
		return p.tracker.Contains(id)
	}
	return p.cursor.Seen(id)
}

func (p *Poller) cursorStored() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasCursor
}

func (p *Poller) cursorID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor.LastPostID
}

func (p *Poller) inGracePeriod(post *postDomain.Post) bool {
	grace := p.cfg.GraceDuration()
	return grace > 0 && p.now().Sub(post.CreatedAt) < grace
}

// acceptable applies the global post filter shared by every chat
func (p *Poller) acceptable(post *postDomain.Post) bool {
	if post.IsBad() {
		slog.Info("Skipping bad post", "post_id", post.ID)
		return false
	}

	required, banned := p.cfg.TagFilter()
	tags := post.Tags()
	if lo.Some(tags, banned) || !lo.Every(tags, required) {
		slog.Debug("Post rejected by tag filter", "post_id", post.ID)
		return false
	}
	return true
}

// advance persists progress past id. Failures are logged so the cycle goes on.
func (p *Poller) advance(id int64) {
	p.mu.Lock()
	p.cursor.Advance(id)
	p.hasCursor = true
	cursor := p.cursor
	var tracker *domain.Tracker
	if p.cfg.TrackLastSeen && !p.tracker.Contains(id) {
		p.tracker.Append(id)
		tracker = domain.NewTracker(domain.TrackerSize, p.tracker.IDs()...)
	}
	p.mu.Unlock()

	if err := p.repo.SaveCursor(cursor); err != nil {
		slog.Error("Failed to save post cursor", "last_post_id", cursor.LastPostID, "error", err)
	}
	if tracker != nil {
		if err := p.repo.SaveTracker(tracker); err != nil {
			slog.Error("Failed to save tracker", "error", err)
		}
	}
}

// Refresh runs one polling cycle. Only one cycle runs at a time; Cancel stops
// it between posts. Each post is advanced past whether or not its delivery
// succeeded.
func (p *Poller) Refresh(ctx context.Context) (domain.Result, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return domain.Result{}, errors.ErrRefreshRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.mu.Unlock()

	var result domain.Result
	defer func() {
		cancel()
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.lastRefresh = p.now()
		p.lastResult = result
		p.mu.Unlock()
	}()

	slog.Info("Refresh started", "mode", string(p.Mode()))

	targets, err := p.targets.Subscribers()
	if err != nil {
		return result, oops.With("context", "failed to load subscribers").Wrap(err)
	}

	posts, err := p.Posts(ctx)
	if err != nil {
		return result, err
	}

	for id, post := range posts {
		if post != nil {
			delivered, failed := p.fanOut(ctx, targets, post)
			result.Delivered += delivered
			result.Failed += failed
		}
		p.advance(id)
		result.Processed++

		if ctx.Err() != nil {
			break
		}
	}

	result.Cancelled = ctx.Err() != nil
	slog.Info("Refresh finished",
		"processed", result.Processed,
		"delivered", result.Delivered,
		"failed", result.Failed,
		"cancelled", result.Cancelled,
	)
	return result, nil
}

// fanOut sends a post to every target that allows it. Sending is detached
// from cancellation so a post is never cut off halfway.
func (p *Poller) fanOut(ctx context.Context, targets []*chatDomain.Config, post *postDomain.Post) (delivered, failed int) {
	sendCtx := context.WithoutCancel(ctx)
	for _, target := range targets {
		if !chatDomain.PostAllowed(target, post) {
			continue
		}
		if err := p.deliverer.Deliver(sendCtx, target.ChatID, target, post); err != nil {
			slog.Error("Failed to deliver post, skipping", "chat_id", target.ChatID, "post_id", post.ID, "error", err)
			failed++
			continue
		}
		delivered++
	}
	return delivered, failed
}

// Cancel stops the running refresh after the post in flight. It reports
// whether a refresh was running.
func (p *Poller) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return false
	}
	p.cancel()
	return true
}

// Running reports whether a refresh is in progress
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Status returns a snapshot for operators
func (p *Poller) Status() domain.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.Status{
		Mode:        p.Mode(),
		Running:     p.running,
		LastPostID:  p.cursor.LastPostID,
		Tracked:     p.tracker.Len(),
		LastRefresh: p.lastRefresh,
		LastResult:  p.lastResult,
	}
}

package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	chatDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	deliveryDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// MaxImportSize is the largest settings file accepted on import
const MaxImportSize = 2_000_000

// ConfigStore loads and persists chat configurations
type ConfigStore interface {
	Get(chatID int64) (*chatDomain.Config, error)
	Save(cfg *chatDomain.Config) error
	Lock(chatID int64) func()
}

// PostFetcher loads a single post
type PostFetcher interface {
	Get(ctx context.Context, id int64) (*postDomain.Post, error)
}

// PostSender renders and sends a post to a chat
type PostSender interface {
	Send(ctx context.Context, chatID int64, cfg *chatDomain.Config, post *postDomain.Post) (*deliveryDomain.Payload, error)
}

// FileFetcher downloads a file uploaded to the chat
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// Machine runs the settings conversation of every chat. Each chat has at
// most one session; its turns are handled one at a time.
type Machine struct {
	store         ConfigStore
	posts         PostFetcher
	sender        PostSender
	files         FileFetcher
	examplePostID int64
	now           func() time.Time

	mu       sync.Mutex
	sessions map[int64]*domain.Session
	drafts   map[int64]*domain.Draft
}

// New creates a settings machine
func New(store ConfigStore, posts PostFetcher, sender PostSender, files FileFetcher, examplePostID int64) *Machine {
	return &Machine{
		store:         store,
		posts:         posts,
		sender:        sender,
		files:         files,
		examplePostID: examplePostID,
		now:           time.Now,
		sessions:      make(map[int64]*domain.Session),
		drafts:        make(map[int64]*domain.Draft),
	}
}

// lock holds the chat's configuration lock for a whole turn, so other
// writers of the same chat wait for it
func (m *Machine) lock(chatID int64) func() {
	return m.store.Lock(chatID)
}

func (m *Machine) session(chatID int64) (*domain.Session, *domain.Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[chatID]
	if !ok {
		return nil, nil, false
	}
	return session, m.drafts[chatID], true
}

func (m *Machine) end(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	delete(m.drafts, chatID)
}

// Active reports whether the chat is in a settings conversation
func (m *Machine) Active(chatID int64) bool {
	_, _, ok := m.session(chatID)
	return ok
}

// State returns the current state of the chat's conversation
func (m *Machine) State(chatID int64) domain.State {
	session, _, ok := m.session(chatID)
	if !ok {
		return domain.StateEnd
	}
	return session.State
}

// Begin starts (or restarts) the conversation at the home menu
func (m *Machine) Begin(ctx context.Context, chatID, userID int64) ([]domain.Reply, error) {
	unlock := m.lock(chatID)
	defer unlock()

	cfg, err := m.store.Get(chatID)
	if err != nil {
		return nil, oops.With("chat_id", chatID, "context", "failed to load chat config").Wrap(err)
	}

	now := m.now()
	m.mu.Lock()
	m.sessions[chatID] = &domain.Session{ChatID: chatID, UserID: userID, State: domain.StateHome, StartedAt: now, UpdatedAt: now}
	m.drafts[chatID] = &domain.Draft{}
	m.mu.Unlock()

	slog.Debug("Settings conversation started", "chat_id", chatID, "user_id", userID)
	return []domain.Reply{homeReply(cfg)}, nil
}

// Cancel aborts the conversation and drops every uncommitted draft
func (m *Machine) Cancel(chatID int64) []domain.Reply {
	m.end(chatID)
	return []domain.Reply{{Text: "Cancelled the current action", RemoveKeyboard: true}}
}

// IsCancel reports whether text is the global cancel command
func IsCancel(text string) bool {
	command, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	command, _, _ = strings.Cut(command, "@")
	return strings.EqualFold(command, "/cancel")
}

// Handle advances the chat's conversation by one turn. Chats without an
// active session get no replies. A failed turn leaves the state unchanged.
func (m *Machine) Handle(ctx context.Context, in domain.Input) ([]domain.Reply, error) {
	unlock := m.lock(in.ChatID)
	defer unlock()

	session, draft, ok := m.session(in.ChatID)
	if !ok {
		return nil, nil
	}
	if IsCancel(in.Text) {
		return m.Cancel(in.ChatID), nil
	}

	cfg, err := m.store.Get(in.ChatID)
	if err != nil {
		return nil, oops.With("chat_id", in.ChatID, "context", "failed to load chat config").Wrap(err)
	}

	from := session.State
	turn := &turn{machine: m, ctx: ctx, in: in, cfg: cfg, draft: draft, text: strings.TrimSpace(in.Text)}
	next, err := turn.run(from)
	if err != nil {
		return nil, oops.With("chat_id", in.ChatID, "state", from.String()).Wrap(err)
	}

	if next.Terminal() {
		m.end(in.ChatID)
	} else {
		m.mu.Lock()
		session.State = next
		session.UpdatedAt = m.now()
		m.mu.Unlock()
	}

	slog.Debug("Settings transition", "chat_id", in.ChatID, "from", from.String(), "to", next.String())
	return turn.replies, nil
}

// turn is the context of a single Handle call
type turn struct {
	machine *Machine
	ctx     context.Context
	in      domain.Input
	cfg     *chatDomain.Config
	draft   *domain.Draft
	text    string
	replies []domain.Reply
}

func (t *turn) reply(r domain.Reply) {
	t.replies = append(t.replies, r)
}

func (t *turn) say(format string, args ...any) {
	t.reply(domain.Reply{Text: fmt.Sprintf(format, args...)})
}

func (t *turn) save() error {
	return t.machine.store.Save(t.cfg)
}

func (t *turn) is(label string) bool {
	return strings.EqualFold(t.text, label)
}

func (t *turn) hasPrefix(prefix string) bool {
	return len(t.text) >= len(prefix) && strings.EqualFold(t.text[:len(prefix)], prefix)
}

func (t *turn) run(state domain.State) (domain.State, error) {
	switch state {
	case domain.StateHome:
		return t.home()
	case domain.StateWaitForImport:
		return t.waitForImport()
	case domain.StateTemplate:
		return t.template()
	case domain.StateAsFiles:
		return t.asFiles()
	case domain.StateGroupsHome:
		return t.groupsHome()
	case domain.StateListGroups:
		return t.listGroups()
	case domain.StateEditGroup1:
		return t.editGroup()
	case domain.StateEditGroup2:
		return t.editTags()
	case domain.StateDeleteGroup1:
		return t.deleteGroup()
	case domain.StateDeleteGroup2:
		return t.confirmDelete()
	case domain.StateTestGroup:
		return t.testGroup()
	default:
		return domain.StateEnd, nil
	}
}

func (t *turn) goHome() (domain.State, error) {
	t.reply(homeReply(t.cfg))
	return domain.StateHome, nil
}

func (t *turn) home() (domain.State, error) {
	switch {
	case t.hasPrefix("Toggle danbooru button"):
		t.cfg.ShowDanbooruButton = !t.cfg.ShowDanbooruButton
	case t.hasPrefix("Toggle source button"):
		t.cfg.ShowSourceButton = !t.cfg.ShowSourceButton
	case t.hasPrefix("Toggle direct button"):
		t.cfg.ShowDirectButton = !t.cfg.ShowDirectButton
	case t.is(labelChangeTemplate):
		t.reply(templateReply(t.cfg, t.draft))
		return domain.StateTemplate, nil
	case t.is(labelAsFiles):
		t.reply(asFilesReply(t.cfg))
		return domain.StateAsFiles, nil
	case t.is(labelTagFilter):
		t.reply(groupsHomeReply(t.cfg))
		return domain.StateGroupsHome, nil
	case t.is(labelExport):
		return t.export()
	case t.is(labelImport):
		t.reply(importReply(t.in.ChatID))
		return domain.StateWaitForImport, nil
	case t.is(labelClose):
		t.reply(domain.Reply{Text: "Settings closed", RemoveKeyboard: true})
		return domain.StateEnd, nil
	default:
		return t.goHome()
	}

	if err := t.save(); err != nil {
		return domain.StateHome, err
	}
	return t.goHome()
}

func (t *turn) export() (domain.State, error) {
	data, err := json.MarshalIndent(t.cfg, "", "  ")
	if err != nil {
		return domain.StateHome, oops.With("context", "failed to export chat config").Wrap(err)
	}
	t.reply(domain.Reply{Document: &domain.Attachment{Name: fmt.Sprintf("%d.json", t.in.ChatID), Data: data}})
	return t.goHome()
}

func (t *turn) waitForImport() (domain.State, error) {
	if t.in.Document == nil {
		if t.is(labelCancel) {
			return t.goHome()
		}
		t.reply(importReply(t.in.ChatID))
		return domain.StateWaitForImport, nil
	}

	retry := func() (domain.State, error) {
		t.reply(domain.Reply{Text: "Have you uploaded the correct file?", Keyboard: [][]string{{labelCancel}}})
		return domain.StateWaitForImport, nil
	}

	doc := t.in.Document
	if doc.Size <= 0 || doc.Size > MaxImportSize {
		return retry()
	}
	data, err := t.machine.files.Fetch(t.ctx, doc.FileID)
	if err != nil {
		return domain.StateWaitForImport, oops.With("file_id", doc.FileID, "context", "failed to download import").Wrap(err)
	}
	if len(data) > MaxImportSize {
		return retry()
	}

	imported, err := chatDomain.ParseConfig(data)
	if err != nil {
		slog.Info("Rejected settings import", "chat_id", t.in.ChatID, "error", err)
		return retry()
	}
	imported.ChatID = t.in.ChatID
	t.cfg = imported
	if err := t.save(); err != nil {
		return domain.StateWaitForImport, err
	}

	t.say("%s Imported the settings successfully!", checkmark(true))
	return t.goHome()
}

func (t *turn) template() (domain.State, error) {
	switch {
	case t.in.Document != nil:
	case t.is(labelExamplePost):
		if err := t.sendExample(); err != nil {
			return domain.StateTemplate, err
		}
	case t.is(labelSave):
		if t.draft.Template == nil {
			return t.goHome()
		}
		if err := chatDomain.ValidateTemplate(*t.draft.Template); err != nil {
			t.say("The template is invalid and was not saved: %s", templateProblem(err))
			break
		}
		t.cfg.Template = *t.draft.Template
		if err := t.save(); err != nil {
			return domain.StateTemplate, err
		}
		t.draft.Template = nil
		return t.goHome()
	case t.is(labelReset):
		t.draft.Template = lo.ToPtr(chatDomain.DefaultTemplate)
	case t.is(labelCancel):
		t.draft.Template = nil
		return t.goHome()
	case t.in.Text != "":
		t.draft.Template = lo.ToPtr(t.in.Text)
	}

	t.reply(templateReply(t.cfg, t.draft))
	return domain.StateTemplate, nil
}

// sendExample renders the example post with the staged template without
// touching the stored configuration
func (t *turn) sendExample() error {
	post, err := t.machine.posts.Get(t.ctx, t.machine.examplePostID)
	if err != nil {
		if stderrors.Is(err, errors.ErrRestrictedPost) {
			t.say("The example post %d is not available.", t.machine.examplePostID)
			return nil
		}
		return oops.With("post_id", t.machine.examplePostID, "context", "failed to fetch example post").Wrap(err)
	}

	preview := t.cfg.Clone()
	if t.draft.Template != nil {
		preview.Template = *t.draft.Template
	}

	if _, err := t.machine.sender.Send(t.ctx, t.in.ChatID, preview, post); err != nil {
		if stderrors.Is(err, errors.ErrInvalidTemplate) {
			t.say("The template is invalid: %s", templateProblem(err))
			return nil
		}
		return err
	}
	return nil
}

func (t *turn) asFiles() (domain.State, error) {
	if t.is(labelCancel) {
		return t.goHome()
	}

	choice, _, _ := strings.Cut(t.text, " ")
	threshold, ok := thresholdChoices[strings.ToLower(choice)]
	if !ok {
		t.reply(asFilesReply(t.cfg))
		return domain.StateAsFiles, nil
	}

	t.cfg.SendAsFilesThreshold = threshold
	if err := t.save(); err != nil {
		return domain.StateAsFiles, err
	}
	return t.goHome()
}

func (t *turn) goGroupsHome() (domain.State, error) {
	t.reply(groupsHomeReply(t.cfg))
	return domain.StateGroupsHome, nil
}

func (t *turn) groupsHome() (domain.State, error) {
	switch {
	case t.is(labelEditGroups):
		t.reply(listGroupsReply(t.cfg))
		return domain.StateListGroups, nil
	case t.is(labelCreateGroup):
		t.reply(domain.Reply{Text: "What do you want to call your group?", Keyboard: [][]string{{labelCancel}}})
		return domain.StateListGroups, nil
	case t.is(labelDeleteGroup):
		t.reply(deleteGroupReply(t.cfg))
		return domain.StateDeleteGroup1, nil
	case t.is(labelTestGroups):
		t.reply(domain.Reply{Text: "Send me the ID of a post to test the configuration on", Keyboard: [][]string{{labelCancel}}})
		return domain.StateTestGroup, nil
	case t.hasPrefix("Toggle group policy"):
		t.cfg.SubscriptionGroupsCombineWithAll = !t.cfg.SubscriptionGroupsCombineWithAll
		if err := t.save(); err != nil {
			return domain.StateGroupsHome, err
		}
		return t.goGroupsHome()
	case t.is(labelBack):
		return t.goHome()
	default:
		return t.goGroupsHome()
	}
}

func (t *turn) listGroups() (domain.State, error) {
	if t.is(labelCancel) {
		return t.goGroupsHome()
	}
	if t.text == "" {
		t.reply(listGroupsReply(t.cfg))
		return domain.StateListGroups, nil
	}

	if _, exists := t.cfg.Group(t.text); !exists {
		if _, err := t.cfg.AddGroup(t.text); err != nil {
			return domain.StateListGroups, err
		}
		if err := t.save(); err != nil {
			return domain.StateListGroups, err
		}
		slog.Info("Created subscription group", "chat_id", t.in.ChatID, "group", t.text)
	}

	t.draft.Group = t.text
	return t.goEditGroup()
}

func (t *turn) currentGroup() (*chatDomain.SubscriptionGroup, bool) {
	return t.cfg.Group(t.draft.Group)
}

func (t *turn) goEditGroup() (domain.State, error) {
	group, ok := t.currentGroup()
	if !ok {
		t.draft.Group = ""
		return t.goGroupsHome()
	}
	t.reply(editGroupReply(group))
	return domain.StateEditGroup1, nil
}

func (t *turn) editGroup() (domain.State, error) {
	group, ok := t.currentGroup()
	if !ok {
		t.draft.Group = ""
		return t.goGroupsHome()
	}

	switch {
	case t.is(labelInclude), t.is(labelExclude):
		t.draft.Include = t.is(labelInclude)
		t.draft.Tags = nil
		t.reply(editTagsReply(group, t.draft))
		return domain.StateEditGroup2, nil
	case t.hasPrefix("Toggle include full match"):
		group.IncludeFullMatch = !group.IncludeFullMatch
	case t.hasPrefix("Toggle exclude full match"):
		group.ExcludeFullMatch = !group.ExcludeFullMatch
	case t.is(labelSave), t.is(labelCancel):
		t.draft.Group = ""
		return t.goGroupsHome()
	default:
		return t.goEditGroup()
	}

	if err := t.save(); err != nil {
		return domain.StateEditGroup1, err
	}
	return t.goEditGroup()
}

func (t *turn) editTags() (domain.State, error) {
	group, ok := t.currentGroup()
	if !ok {
		t.draft.Group = ""
		t.draft.Tags = nil
		return t.goGroupsHome()
	}

	switch {
	case t.is(labelSave):
		if t.draft.Tags != nil {
			if t.draft.Include {
				group.Include = t.draft.Tags
			} else {
				group.Exclude = t.draft.Tags
			}
			if err := t.save(); err != nil {
				return domain.StateEditGroup2, err
			}
		}
		t.draft.Tags = nil
		return t.goEditGroup()
	case t.is(labelCancel):
		t.draft.Tags = nil
		return t.goEditGroup()
	case t.text != "":
		t.draft.Tags = lo.Uniq(strings.Fields(t.text))
	}

	t.reply(editTagsReply(group, t.draft))
	return domain.StateEditGroup2, nil
}

func (t *turn) deleteGroup() (domain.State, error) {
	if t.is(labelCancel) {
		return t.goGroupsHome()
	}
	if _, ok := t.cfg.Group(t.text); !ok {
		if t.text != "" {
			t.say("A group with the name %s does not exist.", t.text)
		}
		t.reply(deleteGroupReply(t.cfg))
		return domain.StateDeleteGroup1, nil
	}

	t.draft.Delete = t.text
	t.reply(domain.Reply{
		Text:     fmt.Sprintf("DELETE GROUP\n\nAre you sure you want to delete the group %s?", t.text),
		Keyboard: [][]string{{labelYes, labelNo}},
	})
	return domain.StateDeleteGroup2, nil
}

func (t *turn) confirmDelete() (domain.State, error) {
	switch {
	case t.is(labelYes):
		name := t.draft.Delete
		t.draft.Delete = ""
		if t.cfg.RemoveGroup(name) {
			if err := t.save(); err != nil {
				return domain.StateDeleteGroup2, err
			}
			if t.draft.Group == name {
				t.draft.Group = ""
			}
			t.say("The group %s has been deleted.", name)
		}
	case t.is(labelNo):
		t.draft.Delete = ""
	default:
		t.reply(domain.Reply{
			Text:     fmt.Sprintf("Are you sure you want to delete the group %s?", t.draft.Delete),
			Keyboard: [][]string{{labelYes, labelNo}},
		})
		return domain.StateDeleteGroup2, nil
	}

	t.reply(deleteGroupReply(t.cfg))
	return domain.StateDeleteGroup1, nil
}

func (t *turn) testGroup() (domain.State, error) {
	if t.is(labelCancel) || t.is(labelBack) {
		return t.goGroupsHome()
	}

	field, _, _ := strings.Cut(t.text, " ")
	postID, err := strconv.ParseInt(field, 10, 64)
	if err != nil || postID <= 0 {
		t.say("You have to send me the ID of a danbooru post.")
		return domain.StateTestGroup, nil
	}

	post, err := t.machine.posts.Get(t.ctx, postID)
	if err != nil {
		if stderrors.Is(err, errors.ErrRestrictedPost) {
			t.say("The post %d is restricted or does not exist.", postID)
			return domain.StateTestGroup, nil
		}
		return domain.StateTestGroup, oops.With("post_id", postID, "context", "failed to fetch test post").Wrap(err)
	}

	if chatDomain.PostAllowed(t.cfg, post) {
		t.say("%s The post is allowed with the current configuration", checkmark(true))
	} else {
		t.say("%s The post is not allowed with the current configuration", checkmark(false))
	}
	return t.goGroupsHome()
}

func templateProblem(err error) string {
	var templateErr *chatDomain.TemplateError
	if stderrors.As(err, &templateErr) {
		if templateErr.Field != "" {
			return fmt.Sprintf("%s {%s} at position %d", templateErr.Reason, templateErr.Field, templateErr.Offset)
		}
		return fmt.Sprintf("%s at position %d", templateErr.Reason, templateErr.Offset)
	}
	return err.Error()
}

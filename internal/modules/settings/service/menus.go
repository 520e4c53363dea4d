package service

import (
	"fmt"
	"strings"

	chatDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/domain"
	"github.com/samber/lo"
)

const (
	labelChangeTemplate = "Change message template"
	labelAsFiles        = "Send posts as files"
	labelTagFilter      = "Change tag filter"
	labelExport         = "Export"
	labelImport         = "Import"
	labelClose          = "Close"
	labelCancel         = "Cancel"
	labelSave           = "Save"
	labelReset          = "Reset"
	labelBack           = "Back"
	labelExamplePost    = "Send example post"
	labelEditGroups     = "Edit existing groups"
	labelCreateGroup    = "Create new group"
	labelDeleteGroup    = "Delete a group"
	labelTestGroups     = "Test groups"
	labelInclude        = "Include"
	labelExclude        = "Exclude"
	labelYes            = "Yes"
	labelNo             = "No"
)

var thresholdChoices = map[string]postDomain.Rating{
	"all":          postDomain.RatingGeneral,
	"sensitive":    postDomain.RatingSensitive,
	"questionable": postDomain.RatingQuestionable,
	"explicit":     postDomain.RatingExplicit,
	"disable":      postDomain.RatingUnset,
}

const templateHelp = `MESSAGE TEMPLATE

Available placeholders:
{posted_at} date and time the post was uploaded
{id} post ID
{tags} up to 15 general tags as hashtags
{artists} artist tags
{characters} character tags
{copyright} copyright tags
{meta} meta tags
{rating} post rating

Use {{ and }} for literal braces.`

func checkmark(on bool) string {
	return lo.Ternary(on, "✅", "❌")
}

func homeReply(cfg *chatDomain.Config) domain.Reply {
	return domain.Reply{
		Text: "SETTINGS\n\nWhat do you want to change?",
		Keyboard: [][]string{
			{"Toggle danbooru button " + checkmark(cfg.ShowDanbooruButton)},
			{"Toggle source button " + checkmark(cfg.ShowSourceButton)},
			{"Toggle direct button " + checkmark(cfg.ShowDirectButton)},
			{labelChangeTemplate, labelAsFiles},
			{labelTagFilter},
			{labelExport, labelImport},
			{labelClose},
		},
	}
}

func importReply(chatID int64) domain.Reply {
	return domain.Reply{
		Text:     fmt.Sprintf("Send me the file you have previously exported. Its name looks like %d.json.", chatID),
		Keyboard: [][]string{{labelCancel}},
	}
}

func templateReply(cfg *chatDomain.Config, draft *domain.Draft) domain.Reply {
	var b strings.Builder
	b.WriteString(templateHelp)
	if draft.Template == nil {
		b.WriteString("\n\nYour current template looks like this:\n\n")
		b.WriteString(cfg.Template)
	} else {
		b.WriteString("\n\nYour new template will look like this:\n\n")
		b.WriteString(*draft.Template)
	}
	b.WriteString("\n\nSend me a new template to change it.")

	return domain.Reply{
		Text: b.String(),
		Keyboard: [][]string{
			{labelExamplePost, labelSave},
			{labelReset, labelCancel},
		},
	}
}

func asFilesReply(cfg *chatDomain.Config) domain.Reply {
	label := func(name string, rating postDomain.Rating) string {
		if cfg.SendAsFilesThreshold == rating {
			return name + " " + checkmark(true)
		}
		return name
	}

	return domain.Reply{
		Text: "SEND AS FILES\n\nPosts with this rating or above are sent as files.",
		Keyboard: [][]string{
			{label("All", postDomain.RatingGeneral), label("Sensitive", postDomain.RatingSensitive)},
			{label("Questionable", postDomain.RatingQuestionable), label("Explicit", postDomain.RatingExplicit)},
			{label("Disable", postDomain.RatingUnset), labelCancel},
		},
	}
}

func groupsHomeReply(cfg *chatDomain.Config) domain.Reply {
	var b strings.Builder
	b.WriteString("TAG FILTER\n\n")
	if len(cfg.SubscriptionGroups) == 0 {
		b.WriteString("You currently have no groups, every post is sent.")
	} else {
		fmt.Fprintf(&b, "A post is sent when it matches %s of these groups:\n", strings.ToLower(cfg.CombinePolicy()))
		for _, group := range cfg.SubscriptionGroups {
			b.WriteString("\n")
			b.WriteString(describeGroup(group))
		}
	}

	return domain.Reply{
		Text: b.String(),
		Keyboard: [][]string{
			{labelEditGroups, labelCreateGroup},
			{labelDeleteGroup, labelTestGroups},
			{fmt.Sprintf("Toggle group policy [%s]", cfg.CombinePolicy())},
			{labelBack},
		},
	}
}

func describeGroup(group *chatDomain.SubscriptionGroup) string {
	return fmt.Sprintf("%s\n  include (%s): %s\n  exclude (%s): %s\n",
		group.Name,
		lo.Ternary(group.IncludeFullMatch, "all", "any"), tagList(group.Include),
		lo.Ternary(group.ExcludeFullMatch, "all", "any"), tagList(group.Exclude),
	)
}

func tagList(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, " ")
}

func groupKeyboard(cfg *chatDomain.Config) [][]string {
	return lo.Chunk(append(cfg.GroupNames(), labelCancel), 2)
}

func listGroupsReply(cfg *chatDomain.Config) domain.Reply {
	if len(cfg.SubscriptionGroups) == 0 {
		return domain.Reply{Text: "You currently have no groups.", Keyboard: [][]string{{labelCancel}}}
	}
	return domain.Reply{Text: "Which group do you want to edit?", Keyboard: groupKeyboard(cfg)}
}

func deleteGroupReply(cfg *chatDomain.Config) domain.Reply {
	if len(cfg.SubscriptionGroups) == 0 {
		return domain.Reply{Text: "You currently have no groups.", Keyboard: [][]string{{labelCancel}}}
	}
	return domain.Reply{Text: "DELETE GROUP\n\nWhich group do you want to delete?", Keyboard: groupKeyboard(cfg)}
}

func editGroupReply(group *chatDomain.SubscriptionGroup) domain.Reply {
	return domain.Reply{
		Text: "EDIT GROUP\n\n" + describeGroup(group),
		Keyboard: [][]string{
			{labelInclude, labelExclude},
			{
				"Toggle include full match " + checkmark(group.IncludeFullMatch),
				"Toggle exclude full match " + checkmark(group.ExcludeFullMatch),
			},
			{labelSave},
		},
	}
}

func editTagsReply(group *chatDomain.SubscriptionGroup, draft *domain.Draft) domain.Reply {
	side, current := "exclude", group.Exclude
	if draft.Include {
		side, current = "include", group.Include
	}

	var b strings.Builder
	fmt.Fprintf(&b, "EDIT GROUP %s\n\n", group.Name)
	if draft.Tags == nil {
		fmt.Fprintf(&b, "The group currently has these %s tags:\n%s", side, tagList(current))
	} else {
		fmt.Fprintf(&b, "Before:\n%s\n\nAfter:\n%s", tagList(current), tagList(draft.Tags))
	}
	fmt.Fprintf(&b, "\n\nSend me the %s tags separated by spaces.", side)

	return domain.Reply{Text: b.String(), Keyboard: [][]string{{labelCancel, labelSave}}}
}

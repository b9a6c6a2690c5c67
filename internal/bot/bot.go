// Package bot is the Telegram administration surface: destination and
// admin management, the settings editor, and the manual poll preview.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"issuecast/internal/channel"
	"issuecast/internal/digest"
	"issuecast/internal/poller"
	"issuecast/internal/storage"
	logx "issuecast/pkg/logx"
)

// previewTimeout bounds the manual /parse collection, which walks up to a
// hundred repositories against the search API.
const previewTimeout = 5 * time.Minute

type Bot struct {
	tb     *tele.Bot
	store  *storage.Store
	poller *poller.Service
	// preview renders the /parse result; it is the Telegram sender so the
	// preview looks exactly like a delivered digest.
	preview channel.Sender
	conv    *Conversations
	log     logx.Logger
}

func New(tb *tele.Bot, store *storage.Store, p *poller.Service, preview channel.Sender, log logx.Logger) *Bot {
	b := &Bot{
		tb:      tb,
		store:   store,
		poller:  p,
		preview: preview,
		conv:    NewConversations(store, log),
		log:     log,
	}
	b.register()
	return b
}

func (b *Bot) register() {
	b.tb.Use(b.restrictAccess)

	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle("/config", b.handleConfig)
	b.tb.Handle("/groups", b.handleGroups)
	b.tb.Handle("/channels", b.handleChannels)
	b.tb.Handle("/admins", b.handleAdmins)
	b.tb.Handle("/parse", b.handleParse)
	b.tb.Handle("/cancel", b.handleText)
	b.tb.Handle(tele.OnText, b.handleText)

	// Every inline button opens a conversation stage.
	for btn, stage := range map[*tele.Btn]Stage{
		&btnSetStars:       StageStars,
		&btnSetRepoDate:    StageRepoDate,
		&btnSetIssueDate:   StageIssueDate,
		&btnSetPerRepo:     StagePerRepo,
		&btnAddHour:        StageAddHour,
		&btnRemoveHour:     StageRemoveHour,
		&btnSetServiceChat: StageServiceChat,
		&btnSetGeneral:     StageGeneralTopic,
		&btnSetSpotlight:   StageSpotlightTopic,
		&btnAddGroup:       StageAddGroup,
		&btnRemoveGroup:    StageRemoveGroup,
		&btnAddChannel:     StageAddChannel,
		&btnRemoveChannel:  StageRemoveChannel,
		&btnAddAdmin:       StageAddAdmin,
		&btnRemoveAdmin:    StageRemoveAdmin,
	} {
		stage := stage
		b.tb.Handle(btn, func(c tele.Context) error {
			if err := c.Respond(&tele.CallbackResponse{}); err != nil {
				b.log.Debug("callback respond failed", logx.Err(err))
			}
			return c.Send(b.conv.Begin(c.Sender().ID, stage))
		})
	}
}

// ---- inline keyboards ----

var (
	btnSetStars       = tele.Btn{Unique: "set_stars", Text: "Set star criteria"}
	btnSetRepoDate    = tele.Btn{Unique: "set_repo_date", Text: "Set repo created date"}
	btnSetIssueDate   = tele.Btn{Unique: "set_issue_date", Text: "Set issue created date"}
	btnSetPerRepo     = tele.Btn{Unique: "set_per_repo", Text: "Set issues per repo"}
	btnAddHour        = tele.Btn{Unique: "add_hour", Text: "Add send hour"}
	btnRemoveHour     = tele.Btn{Unique: "remove_hour", Text: "Remove send hour"}
	btnSetServiceChat = tele.Btn{Unique: "set_service_chat", Text: "Set service chat"}
	btnSetGeneral     = tele.Btn{Unique: "set_general_topic", Text: "Set general topic"}
	btnSetSpotlight   = tele.Btn{Unique: "set_spotlight_topic", Text: "Set spotlight topic"}
	btnAddGroup       = tele.Btn{Unique: "add_group", Text: "Add"}
	btnRemoveGroup    = tele.Btn{Unique: "remove_group", Text: "Remove"}
	btnAddChannel     = tele.Btn{Unique: "add_channel", Text: "Add"}
	btnRemoveChannel  = tele.Btn{Unique: "remove_channel", Text: "Remove"}
	btnAddAdmin       = tele.Btn{Unique: "add_admin", Text: "Add"}
	btnRemoveAdmin    = tele.Btn{Unique: "remove_admin", Text: "Remove"}
)

func configMarkup() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(btnSetStars, btnSetRepoDate),
		m.Row(btnSetIssueDate, btnSetPerRepo),
		m.Row(btnAddHour, btnRemoveHour),
		m.Row(btnSetServiceChat),
		m.Row(btnSetGeneral, btnSetSpotlight),
	)
	return m
}

func addRemoveMarkup(add, remove tele.Btn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(add, remove))
	return m
}

// ---- command handlers ----

func (b *Bot) handleStart(c tele.Context) error {
	ctx := context.Background()
	if err := b.store.AddUser(ctx, c.Sender().ID); err != nil {
		b.log.Warn("user registration failed", logx.Int64("user", c.Sender().ID), logx.Err(err))
	}
	return c.Send(fmt.Sprintf("👋 Hello, %s! I broadcast fresh open-source issues to registered groups and channels.", c.Sender().FirstName))
}

func (b *Bot) handleConfig(c tele.Context) error {
	set, err := b.store.Settings(context.Background())
	if err != nil {
		b.log.Error("settings load failed", logx.Err(err))
		return c.Send("Storage error, try again later.")
	}

	hours := make([]string, 0, len(set.SendHours))
	for _, h := range set.SendHours {
		hours = append(hours, fmt.Sprintf("%02d:00", h))
	}

	msg := fmt.Sprintf(`⚙️ <b>Current settings</b>:

<b>Minimum stars</b>: %d
<b>Repo created before</b>: %s
<b>Issue created after</b>: %s
<b>Issues per repo</b>: %d
<b>Send hours (UTC)</b>: %s
<b>Service chat</b>: %d
<b>General topic</b>: %s
<b>Spotlight topic</b>: %s`,
		set.Stars, set.RepoCreatedBefore, set.IssueCreatedAfter, set.IssuesPerRepo,
		strings.Join(hours, ", "), set.ServiceChatID, set.GeneralTopic, set.SpotlightTopic)

	return c.Send(msg, configMarkup(), tele.ModeHTML)
}

func (b *Bot) handleGroups(c tele.Context) error {
	return b.listDestinations(c, channel.KindTelegram, "📚 <b>Telegram groups</b>:", addRemoveMarkup(btnAddGroup, btnRemoveGroup))
}

func (b *Bot) handleChannels(c tele.Context) error {
	return b.listDestinations(c, channel.KindDiscord, "📚 <b>Discord channels</b>:", addRemoveMarkup(btnAddChannel, btnRemoveChannel))
}

func (b *Bot) listDestinations(c tele.Context, kind channel.Kind, header string, markup *tele.ReplyMarkup) error {
	dests, err := b.store.Destinations(context.Background(), kind)
	if err != nil {
		b.log.Error("destination list failed", logx.Err(err))
		return c.Send("Storage error, try again later.")
	}

	var sb strings.Builder
	sb.WriteString(header + "\n\n")
	for i, d := range dests {
		fmt.Fprintf(&sb, "<b>%d</b>. %s (%s)\n", i+1, d.ExternalID, d.State)
	}
	if len(dests) == 0 {
		sb.WriteString("none yet\n")
	}
	return c.Send(sb.String(), markup, tele.ModeHTML)
}

func (b *Bot) handleAdmins(c tele.Context) error {
	admins, err := b.store.Admins(context.Background())
	if err != nil {
		b.log.Error("admin list failed", logx.Err(err))
		return c.Send("Storage error, try again later.")
	}

	var sb strings.Builder
	sb.WriteString("👮 <b>Admins</b>:\n\n")
	for i, id := range admins {
		fmt.Fprintf(&sb, "<b>%d</b>. %d\n", i+1, id)
	}
	return c.Send(sb.String(), addRemoveMarkup(btnAddAdmin, btnRemoveAdmin), tele.ModeHTML)
}

// handleParse is the manual invocation mode: collect a batch right now,
// bypassing the trigger gate, and show it to the caller without arming
// any destination.
func (b *Bot) handleParse(c tele.Context) error {
	if err := c.Send("Collecting a preview, this can take a while..."); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), previewTimeout)
	defer cancel()

	batch, err := b.poller.RunNow(ctx)
	if errors.Is(err, poller.ErrShortfall) {
		return c.Send(fmt.Sprintf("❌ %v. Nothing to preview.", err))
	}
	if err != nil {
		b.log.Error("manual poll failed", logx.Err(err))
		return c.Send("Collection failed, see the log.")
	}

	b.log.Info("manual poll preview served",
		logx.Int64("user", c.Sender().ID),
		logx.Int("general", batch.Count(digest.CategoryGeneral)),
		logx.Int("spotlight", batch.Count(digest.CategorySpotlight)))
	return c.Send(b.preview.Format(batch), tele.ModeHTML)
}

// handleText feeds active conversations; text outside a conversation is
// ignored (groups this bot sits in produce plenty of it).
func (b *Bot) handleText(c tele.Context) error {
	if !b.conv.Active(c.Sender().ID) {
		return nil
	}
	reply := b.conv.Handle(context.Background(), c.Sender().ID, c.Text())
	if reply == "" {
		return nil
	}
	return c.Send(reply)
}

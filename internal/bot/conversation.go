package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"issuecast/internal/channel"
	"issuecast/internal/storage"
	logx "issuecast/pkg/logx"
)

// Stage identifies which setting a user is currently editing. The editor
// is a plain finite-state machine keyed by user ID: one pending stage per
// user, advanced by each text message, cleared by completion or /cancel.
type Stage string

const (
	StageNone           Stage = ""
	StageStars          Stage = "set_stars"
	StageRepoDate       Stage = "set_repo_date"
	StageIssueDate      Stage = "set_issue_date"
	StagePerRepo        Stage = "set_per_repo"
	StageAddHour        Stage = "add_hour"
	StageRemoveHour     Stage = "remove_hour"
	StageServiceChat    Stage = "set_service_chat"
	StageGeneralTopic   Stage = "set_general_topic"
	StageSpotlightTopic Stage = "set_spotlight_topic"
	StageAddGroup       Stage = "add_group"
	StageRemoveGroup    Stage = "remove_group"
	StageAddChannel     Stage = "add_channel"
	StageRemoveChannel  Stage = "remove_channel"
	StageAddAdmin       Stage = "add_admin"
	StageRemoveAdmin    Stage = "remove_admin"
)

// cancelCommand aborts any in-flight edit.
const cancelCommand = "/cancel"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var prompts = map[Stage]string{
	StageStars:          "Send the minimum star count (a number from 1).\n\nTo leave, type /cancel",
	StageRepoDate:       "Send the repository created-before date as YYYY-MM-DD.\n\nTo leave, type /cancel",
	StageIssueDate:      "Send the issue created-after date as YYYY-MM-DD.\n\nTo leave, type /cancel",
	StagePerRepo:        "Send how many issues one repository may contribute (1 to 3).\n\nTo leave, type /cancel",
	StageAddHour:        "Send an hour to allow (0 to 23, UTC).\n\nTo leave, type /cancel",
	StageRemoveHour:     "Send an hour to remove (0 to 23, UTC).\n\nTo leave, type /cancel",
	StageServiceChat:    "Send the service chat ID.\n\nTo leave, type /cancel",
	StageGeneralTopic:   "Send the general topic tag.\n\nTo leave, type /cancel",
	StageSpotlightTopic: "Send the spotlight topic tag.\n\nTo leave, type /cancel",
	StageAddGroup:       "Send the Telegram group chat ID to add.\n\nTo leave, type /cancel",
	StageRemoveGroup:    "Send the Telegram group chat ID to remove.\n\nTo leave, type /cancel",
	StageAddChannel:     "Send the Discord channel ID to add.\n\nTo leave, type /cancel",
	StageRemoveChannel:  "Send the Discord channel ID to remove.\n\nTo leave, type /cancel",
	StageAddAdmin:       "Send the Telegram user ID to promote.\n\nTo leave, type /cancel",
	StageRemoveAdmin:    "Send the Telegram user ID to demote.\n\nTo leave, type /cancel",
}

// Conversations tracks in-flight settings edits.
type Conversations struct {
	mu       sync.Mutex
	sessions map[int64]Stage

	store *storage.Store
	log   logx.Logger
}

func NewConversations(store *storage.Store, log logx.Logger) *Conversations {
	return &Conversations{
		sessions: map[int64]Stage{},
		store:    store,
		log:      log,
	}
}

// Begin opens a stage for the user and returns the prompt. If the user is
// already editing something, it refuses with an explanatory reply.
func (c *Conversations) Begin(userID int64, st Stage) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur := c.sessions[userID]; cur != StageNone {
		return "You are already changing a setting. Finish it or type /cancel first."
	}
	p, ok := prompts[st]
	if !ok {
		return "Unknown action."
	}
	c.sessions[userID] = st
	return p
}

// Active reports whether the user has an edit in flight.
func (c *Conversations) Active(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[userID] != StageNone
}

// Handle consumes one text message from a user with an active stage and
// returns the reply. Invalid input re-prompts without clearing the stage;
// /cancel always clears it.
func (c *Conversations) Handle(ctx context.Context, userID int64, text string) string {
	c.mu.Lock()
	st := c.sessions[userID]
	c.mu.Unlock()
	if st == StageNone {
		return ""
	}

	text = strings.TrimSpace(text)
	if text == cancelCommand {
		c.clear(userID)
		return "Canceled."
	}

	reply, done := c.apply(ctx, st, text)
	if done {
		c.clear(userID)
		c.log.Info("setting changed", logx.Int64("user", userID), logx.String("stage", string(st)))
	}
	return reply
}

func (c *Conversations) clear(userID int64) {
	c.mu.Lock()
	delete(c.sessions, userID)
	c.mu.Unlock()
}

// apply validates the input for the stage and performs the write.
// done=false means the input was rejected and the stage stays open.
func (c *Conversations) apply(ctx context.Context, st Stage, text string) (reply string, done bool) {
	fail := func(msg string) (string, bool) { return msg, false }

	switch st {
	case StageStars:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 {
			return fail("Invalid number. Send a number from 1.")
		}
		if err := c.store.SetSetting(ctx, storage.KeyStars, strconv.Itoa(n)); err != nil {
			return c.storeError(err)
		}
		return fmt.Sprintf("Minimum stars set to %d.", n), true

	case StageRepoDate, StageIssueDate:
		if !validDate(text) {
			return fail("Invalid date. Use YYYY-MM-DD.")
		}
		key := storage.KeyRepoCreatedBefore
		if st == StageIssueDate {
			key = storage.KeyIssueCreatedAfter
		}
		if err := c.store.SetSetting(ctx, key, text); err != nil {
			return c.storeError(err)
		}
		return fmt.Sprintf("Date criterion set to %s.", text), true

	case StagePerRepo:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > 3 {
			return fail("Invalid number. Send a number from 1 to 3.")
		}
		if err := c.store.SetSetting(ctx, storage.KeyIssuesPerRepo, strconv.Itoa(n)); err != nil {
			return c.storeError(err)
		}
		return fmt.Sprintf("Issues per repository set to %d.", n), true

	case StageAddHour, StageRemoveHour:
		h, err := strconv.Atoi(text)
		if err != nil || h < 0 || h > 23 {
			return fail("Invalid hour. Send a number from 0 to 23.")
		}
		if st == StageAddHour {
			err = c.store.AddSendHour(ctx, h)
		} else {
			err = c.store.RemoveSendHour(ctx, h)
		}
		if err != nil {
			return c.storeError(err)
		}
		return fmt.Sprintf("Send hours updated (%02d:00 UTC).", h), true

	case StageServiceChat:
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fail("Invalid chat ID.")
		}
		if err := c.store.SetSetting(ctx, storage.KeyServiceChatID, strconv.FormatInt(id, 10)); err != nil {
			return c.storeError(err)
		}
		return fmt.Sprintf("Service chat set to %d.", id), true

	case StageGeneralTopic, StageSpotlightTopic:
		if text == "" || strings.ContainsAny(text, " \t") {
			return fail("Invalid topic. Send a single tag, e.g. hacktoberfest.")
		}
		key := storage.KeyGeneralTopic
		if st == StageSpotlightTopic {
			key = storage.KeySpotlightTopic
		}
		if err := c.store.SetSetting(ctx, key, text); err != nil {
			return c.storeError(err)
		}
		return fmt.Sprintf("Topic set to %s.", text), true

	case StageAddGroup, StageRemoveGroup:
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			return fail("Invalid chat ID.")
		}
		return c.changeDestination(ctx, channel.KindTelegram, text, st == StageAddGroup)

	case StageAddChannel, StageRemoveChannel:
		if _, err := strconv.ParseUint(text, 10, 64); err != nil {
			return fail("Invalid channel ID.")
		}
		return c.changeDestination(ctx, channel.KindDiscord, text, st == StageAddChannel)

	case StageAddAdmin, StageRemoveAdmin:
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fail("Invalid user ID.")
		}
		if st == StageAddAdmin {
			if err := c.store.EnsureAdmin(ctx, id); err != nil {
				return c.storeError(err)
			}
			return fmt.Sprintf("User %d is now an admin.", id), true
		}
		if err := c.store.SetAdmin(ctx, id, false); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fail("Unknown user ID.")
			}
			return c.storeError(err)
		}
		return fmt.Sprintf("User %d is no longer an admin.", id), true
	}

	return "Something went wrong.", true
}

func (c *Conversations) changeDestination(ctx context.Context, kind channel.Kind, id string, add bool) (string, bool) {
	if add {
		err := c.store.AddDestination(ctx, kind, id)
		if errors.Is(err, storage.ErrExists) {
			return "That destination is already registered.", false
		}
		if err != nil {
			return c.storeError(err)
		}
		return fmt.Sprintf("Destination %s added.", id), true
	}
	err := c.store.RemoveDestination(ctx, kind, id)
	if errors.Is(err, storage.ErrNotFound) {
		return "No such destination.", false
	}
	if err != nil {
		return c.storeError(err)
	}
	return fmt.Sprintf("Destination %s removed.", id), true
}

func (c *Conversations) storeError(err error) (string, bool) {
	c.log.Error("settings write failed", logx.Err(err))
	return "Storage error, try again later.", true
}

func validDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	parts := strings.SplitN(s, "-", 3)
	year, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	day, _ := strconv.Atoi(parts[2])
	return year >= 2000 && month >= 1 && month <= 12 && day >= 1 && day <= 31
}

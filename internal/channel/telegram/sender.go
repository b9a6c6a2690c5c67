// Package telegram delivers digest messages to Telegram groups through
// the shared telebot instance.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"issuecast/internal/channel"
	"issuecast/internal/digest"
)

type Sender struct {
	bot *tele.Bot
}

func NewSender(bot *tele.Bot) *Sender {
	return &Sender{bot: bot}
}

func (s *Sender) Kind() channel.Kind { return channel.KindTelegram }

// Format renders the combined digest in Telegram HTML parse mode.
// Spotlight issues come first, then the general track. Titles are escaped
// because issue titles routinely contain `<` and `>`.
func (s *Sender) Format(batch digest.Batch) string {
	var b strings.Builder
	b.WriteString("📌 <b>Fresh open-source issues</b>:\n\n")
	for _, is := range batch.ByCategory(digest.CategorySpotlight) {
		writeRow(&b, is)
	}
	for _, is := range batch.ByCategory(digest.CategoryGeneral) {
		writeRow(&b, is)
	}
	return b.String()
}

func writeRow(b *strings.Builder, is digest.Issue) {
	fmt.Fprintf(b, "🔹 <a href=\"%s\">%s</a>\n\n", is.URL, html.EscapeString(is.Title))
}

// Send delivers the formatted digest to one group chat. The destination ID
// is the chat ID in decimal form, as stored in the registry.
func (s *Sender) Send(ctx context.Context, destinationID string, message string) error {
	chatID, err := strconv.ParseInt(destinationID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram destination %q: %w", destinationID, err)
	}

	_, err = s.bot.Send(&tele.Chat{ID: chatID}, message, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, tele.ErrChatNotFound) || errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrKickedFromGroup) || errors.Is(err, tele.ErrKickedFromSuperGroup) {
		return fmt.Errorf("%w: %v", channel.ErrUnreachable, err)
	}
	return err
}

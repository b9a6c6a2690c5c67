package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "issuecast/pkg/logx"
)

// restrictAccess keeps the administration surface private: commands are
// accepted only in direct chats, /start is open to anyone, and everything
// else requires an admin record.
func (b *Bot) restrictAccess(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
			return nil
		}
		if strings.HasPrefix(c.Text(), "/start") {
			return next(c)
		}

		ok, err := b.store.IsAdmin(context.Background(), c.Sender().ID)
		if err != nil {
			b.log.Error("admin check failed", logx.Int64("user", c.Sender().ID), logx.Err(err))
			return nil
		}
		if !ok {
			b.log.Debug("non-admin interaction dropped", logx.Int64("user", c.Sender().ID))
			return nil
		}
		return next(c)
	}
}

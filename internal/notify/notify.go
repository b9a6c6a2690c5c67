// Package notify sends plain status lines to the operator's service chat:
// threshold aborts, cycle start/stop, per-destination delivery failures.
//
// The notifier is best-effort by contract. A failure to notify is logged
// and swallowed; the pipeline never depends on it.
package notify

import (
	"context"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	"issuecast/internal/storage"
	logx "issuecast/pkg/logx"
)

type Service struct {
	bot     *tele.Bot
	store   *storage.Store
	log     logx.Logger
	limiter *rate.Limiter
}

// New builds the notifier. ratePerSec caps how many status lines may reach
// the service chat; excess lines are dropped, not queued.
func New(bot *tele.Bot, store *storage.Store, ratePerSec int, log logx.Logger) *Service {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Service{
		bot:     bot,
		store:   store,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// Send delivers one status line to the configured service chat. It never
// returns an error: an unset chat, a rate-limit drop, or a transport
// failure all end in the log.
func (s *Service) Send(ctx context.Context, text string) {
	set, err := s.store.Settings(ctx)
	if err != nil {
		s.log.Warn("service notification skipped: settings unavailable", logx.Err(err))
		return
	}
	if set.ServiceChatID == 0 {
		s.log.Debug("service notification skipped: service chat not set", logx.String("text", text))
		return
	}
	if !s.limiter.Allow() {
		s.log.Warn("service notification dropped by rate limit", logx.String("text", text))
		return
	}

	if _, err := s.bot.Send(&tele.Chat{ID: set.ServiceChatID}, text); err != nil {
		s.log.Warn("service notification send failed",
			logx.Int64("chat_id", set.ServiceChatID), logx.Err(err))
	}
}

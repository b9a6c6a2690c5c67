// Package app wires the pipeline together: config, storage, the Telegram
// and Discord transports, the poller, and the two dispatch workers on a
// shared cron scheduler.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	tele "gopkg.in/telebot.v4"

	"issuecast/internal/bot"
	"issuecast/internal/channel/discord"
	"issuecast/internal/channel/telegram"
	"issuecast/internal/config"
	"issuecast/internal/dispatch"
	"issuecast/internal/github"
	"issuecast/internal/notify"
	"issuecast/internal/poller"
	"issuecast/internal/storage"
	logx "issuecast/pkg/logx"
)

type App struct {
	cfgPath string

	log  logx.Logger
	logs *logx.Service

	store *storage.Store
	tb    *tele.Bot

	poll     *poller.Service
	tgWorker *dispatch.Worker
	dcWorker *dispatch.Worker

	cron *cron.Cron

	pollEvery     time.Duration
	dispatchEvery time.Duration
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		store.Close()
		return nil, err
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	a := &App{
		cfgPath: cfgPath,
		log:     log,
		logs:    logSvc,
		store:   store,
		tb:      tb,
	}
	if err := a.buildServices(cfg); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildServices(cfg config.Config) error {
	minInterval, err := config.ParseDurationOrDefault("pipeline.min_interval", cfg.Pipeline.MinInterval, time.Hour)
	if err != nil {
		return err
	}
	pollEvery, err := config.ParseDurationOrDefault("pipeline.poll_every", cfg.Pipeline.PollEvery, 15*time.Minute)
	if err != nil {
		return err
	}
	dispatchEvery, err := config.ParseDurationOrDefault("pipeline.dispatch_every", cfg.Pipeline.DispatchEvery, 5*time.Second)
	if err != nil {
		return err
	}
	tgDelay, err := config.ParseDurationOrDefault("pipeline.telegram.send_delay", cfg.Pipeline.Telegram.SendDelay, 200*time.Millisecond)
	if err != nil {
		return err
	}
	dcDelay, err := config.ParseDurationOrDefault("pipeline.discord.send_delay", cfg.Pipeline.Discord.SendDelay, 2*time.Second)
	if err != nil {
		return err
	}
	a.pollEvery = pollEvery
	a.dispatchEvery = dispatchEvery

	notifSvc := notify.New(a.tb, a.store, cfg.Pipeline.NotifyRatePerSec, a.log.With(logx.String("comp", "notify")))

	gh := github.New(cfg.GitHub.Token, a.log.With(logx.String("comp", "github")))
	a.poll = poller.New(gh, a.store, notifSvc, minInterval, a.log.With(logx.String("comp", "poller")))

	tgSender := telegram.NewSender(a.tb)
	a.tgWorker = dispatch.New(tgSender, a.store, notifSvc, dispatch.Config{
		BatchLimit: orDefault(cfg.Pipeline.Telegram.BatchLimit, 15),
		SendDelay:  tgDelay,
	}, a.log.With(logx.String("comp", "dispatch")))

	dcSender := discord.NewSender(cfg.Discord.Token)
	a.dcWorker = dispatch.New(dcSender, a.store, notifSvc, dispatch.Config{
		BatchLimit: orDefault(cfg.Pipeline.Discord.BatchLimit, 2),
		SendDelay:  dcDelay,
	}, a.log.With(logx.String("comp", "dispatch")))

	bot.New(a.tb, a.store, a.poll, tgSender, a.log.With(logx.String("comp", "bot")))
	return nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (a *App) Start(ctx context.Context) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.OwnerUserID != 0 {
		if err := a.store.EnsureAdmin(ctx, cfg.Telegram.OwnerUserID); err != nil {
			return fmt.Errorf("seed owner admin: %w", err)
		}
	}

	// Jobs never overlap themselves: a long GitHub crawl or a slow dispatch
	// batch skips the next tick instead of stacking.
	cronLog := cronLogger{a.log.With(logx.String("comp", "cron"))}
	a.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)
	a.cron.Schedule(cron.Every(a.pollEvery), cron.FuncJob(func() {
		if err := a.poll.Run(context.Background()); err != nil {
			a.log.Error("poll cycle failed", logx.Err(err))
		}
	}))
	a.cron.Schedule(cron.Every(a.dispatchEvery), cron.FuncJob(func() {
		if err := a.tgWorker.Tick(context.Background()); err != nil {
			a.log.Error("telegram dispatch tick failed", logx.Err(err))
		}
	}))
	a.cron.Schedule(cron.Every(a.dispatchEvery), cron.FuncJob(func() {
		if err := a.dcWorker.Tick(context.Background()); err != nil {
			a.log.Error("discord dispatch tick failed", logx.Err(err))
		}
	}))
	a.cron.Start()

	go a.tb.Start()

	go func() {
		err := config.Watch(ctx, a.cfgPath, a.log.With(logx.String("comp", "config")), func(next config.Config) {
			a.logs.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.File.Enabled,
					Path:    next.Logging.File.Path,
				},
			})
			a.log.Info("logging config reloaded", logx.String("level", next.Logging.Level))
		})
		if err != nil && ctx.Err() == nil {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	a.log.Info("started",
		logx.Duration("poll_every", a.pollEvery),
		logx.Duration("dispatch_every", a.dispatchEvery))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cron != nil {
		stopped := a.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
	}
	a.tb.Stop()
	err := a.store.Close()
	a.logs.Close()
	return err
}

// cronLogger adapts logx to the scheduler's logging interface; it only
// ever hears about skipped overlapping runs.
type cronLogger struct{ log logx.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.log.Debug(msg, logx.Any("detail", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.log.Error(msg, logx.Err(err), logx.Any("detail", kv))
}

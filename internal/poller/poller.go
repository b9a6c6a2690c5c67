// Package poller discovers new open-source issues and arms delivery cycles.
//
// A tick runs in three phases: the trigger gate (allowed hour + minimum
// interval since the last cycle), batch collection against the search API
// with dedup and size caps, and the atomic arming transaction that fans the
// cycle out to both dispatch queues.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"issuecast/internal/digest"
	"issuecast/internal/github"
	"issuecast/internal/storage"
	logx "issuecast/pkg/logx"
)

const (
	// generalTarget is both the cap on general-track issues and the hard
	// minimum below which the whole cycle is suppressed.
	generalTarget = 8
	// combinedCap bounds the whole batch; the spotlight track fills
	// whatever room the general track left.
	combinedCap = 10
)

// ErrShortfall reports that a poll found fewer than generalTarget
// general-track issues and the cycle was aborted without arming anything.
var ErrShortfall = errors.New("not enough general issues")

// Searcher is the slice of the GitHub client the poller consumes.
type Searcher interface {
	SearchRepositories(ctx context.Context, q github.RepoQuery) ([]github.Repository, error)
	SearchIssues(ctx context.Context, repoFullName, createdAfter string) ([]github.Issue, error)
}

// Notifier delivers status lines to the service chat.
type Notifier interface {
	Send(ctx context.Context, text string)
}

type Service struct {
	search Searcher
	store  *storage.Store
	notify Notifier
	log    logx.Logger

	// minInterval is the minimum spacing between armed cycles.
	minInterval time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func New(search Searcher, store *storage.Store, notify Notifier, minInterval time.Duration, log logx.Logger) *Service {
	if minInterval <= 0 {
		minInterval = time.Hour
	}
	return &Service{
		search:      search,
		store:       store,
		notify:      notify,
		log:         log,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Run is one scheduled poller tick. A closed trigger gate or a threshold
// shortfall is a policy outcome, not an error; only storage or search
// failures surface as errors.
func (s *Service) Run(ctx context.Context) error {
	set, err := s.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	now := s.now().UTC()
	if !set.AllowsHour(now.Hour()) {
		s.log.Debug("poll gate closed: hour not allowed", logx.Int("hour", now.Hour()))
		return nil
	}
	if since := now.Sub(time.Unix(set.LastSentUnix, 0)); since < s.minInterval {
		s.log.Debug("poll gate closed: too soon", logx.Duration("since_last", since))
		return nil
	}

	batch, err := s.collect(ctx, set)
	if errors.Is(err, ErrShortfall) {
		s.log.Warn("cycle aborted: general issues below threshold",
			logx.Int("got", batch.Count(digest.CategoryGeneral)),
			logx.Int("want", generalTarget))
		s.notify.Send(ctx, fmt.Sprintf("❌ Found only %d general issues (need %d). Aborting cycle.",
			batch.Count(digest.CategoryGeneral), generalTarget))
		return nil
	}
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	cycleID := uuid.NewString()
	if err := s.store.ArmCycle(ctx, cycleID, now, batch); err != nil {
		return fmt.Errorf("arm cycle: %w", err)
	}

	s.log.Info("cycle collected and armed",
		logx.String("cycle", cycleID),
		logx.Int("general", batch.Count(digest.CategoryGeneral)),
		logx.Int("spotlight", batch.Count(digest.CategorySpotlight)))
	return nil
}

// RunNow is the manual invocation mode: it bypasses the trigger gate and
// the arming step, returning the collected batch for a one-off preview.
// Dedup writes still happen so a later cycle does not re-offer the same
// issues. A shortfall is returned as ErrShortfall (wrapped with the count).
func (s *Service) RunNow(ctx context.Context) (digest.Batch, error) {
	set, err := s.store.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	batch, err := s.collect(ctx, set)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// collect gathers one qualifying batch: the general track first (capped at
// generalTarget, hard minimum), then the spotlight track until combinedCap.
// Dedup entries for every accepted issue are persisted only once the
// threshold is met, so an aborted cycle re-offers its issues next time.
func (s *Service) collect(ctx context.Context, set storage.Settings) (digest.Batch, error) {
	var batch digest.Batch
	inBatch := map[int64]bool{}

	err := s.scanTrack(ctx, &batch, inBatch, github.RepoQuery{
		Topic:         set.GeneralTopic,
		MinStars:      set.Stars,
		CreatedBefore: set.RepoCreatedBefore,
	}, set, digest.CategoryGeneral, generalTarget)
	if err != nil {
		return nil, err
	}

	if batch.Count(digest.CategoryGeneral) < generalTarget {
		return batch, fmt.Errorf("%w: got %d, want %d",
			ErrShortfall, batch.Count(digest.CategoryGeneral), generalTarget)
	}

	err = s.scanTrack(ctx, &batch, inBatch, github.RepoQuery{
		Topic: set.SpotlightTopic,
	}, set, digest.CategorySpotlight, combinedCap)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkSeen(ctx, batch); err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}
	return batch, nil
}

// scanTrack walks one track's repositories in update order, accepting
// unseen issues until the batch reaches sizeCap. Each repository may
// contribute at most set.IssuesPerRepo issues.
func (s *Service) scanTrack(ctx context.Context, batch *digest.Batch, inBatch map[int64]bool, q github.RepoQuery, set storage.Settings, cat digest.Category, sizeCap int) error {
	if len(*batch) >= sizeCap {
		return nil
	}

	repos, err := s.search.SearchRepositories(ctx, q)
	if err != nil {
		return err
	}

	perRepo := set.IssuesPerRepo
	if perRepo <= 0 {
		perRepo = 1
	}

	for _, repo := range repos {
		issues, err := s.search.SearchIssues(ctx, repo.FullName, set.IssueCreatedAfter)
		if err != nil {
			return err
		}
		s.log.Debug("repository scanned",
			logx.String("repo", repo.FullName),
			logx.String("track", string(cat)),
			logx.Int("issues", len(issues)))

		contributed := 0
		for _, is := range issues {
			if inBatch[is.ID] {
				continue
			}
			seen, err := s.store.SeenIssue(ctx, is.ID)
			if err != nil {
				return err
			}
			if seen {
				continue
			}

			*batch = append(*batch, digest.Issue{
				ID:       is.ID,
				Title:    is.Title,
				URL:      is.HTMLURL,
				RepoURL:  repo.HTMLURL,
				Category: cat,
			})
			inBatch[is.ID] = true
			contributed++

			if contributed >= perRepo || len(*batch) >= sizeCap {
				break
			}
		}
		if len(*batch) >= sizeCap {
			break
		}
	}
	return nil
}

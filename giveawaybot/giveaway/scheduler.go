package giveaway

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/repositories"
	"github.com/disgoorg/giveaway-bot/giveawaybot/logger"
)

const (
	// MinTickInterval is the floor for the scheduler period to avoid
	// tight-looping on a misconfigured value.
	MinTickInterval = 5 * time.Second
	// DefaultTickInterval is used when no interval is configured.
	DefaultTickInterval = 30 * time.Second

	defaultPublishTimeout = 30 * time.Second
	maxConcurrentDraws    = 4
)

// Scheduler periodically scans for due giveaways and drives each through
// Draw and Announce. Every step is idempotent against the store's guard
// conditions, so a failed or half-finished giveaway is simply retried on the
// next tick; no error here is ever fatal to the loop.
type Scheduler struct {
	repo           repositories.GiveawayRepository
	lifecycle      *Lifecycle
	interval       time.Duration
	publishTimeout time.Duration
	ticking        atomic.Bool
	shutdown       chan struct{}
	done           chan struct{}
}

func NewScheduler(repo repositories.GiveawayRepository, lifecycle *Lifecycle, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if interval < MinTickInterval {
		interval = MinTickInterval
	}
	return &Scheduler{
		repo:           repo,
		lifecycle:      lifecycle,
		interval:       interval,
		publishTimeout: defaultPublishTimeout,
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the periodic loop. An immediate first tick catches up on
// giveaways that became due while the process was down.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("Giveaway scheduler started",
			slog.Duration("interval", s.interval))

		s.Tick(context.Background())
		for {
			select {
			case <-ticker.C:
				s.Tick(context.Background())
			case <-s.shutdown:
				return
			}
		}
	}()
}

// Tick processes all currently due giveaways once. A tick is skipped while a
// previous one still runs, so two overlapping ticks can never race on the
// same giveaway.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		slog.Warn("Skipping scheduler tick, previous tick still running")
		return
	}
	defer s.ticking.Store(false)

	start := time.Now()
	due, err := s.repo.GetDue(ctx, start)
	if err != nil {
		logger.LogError("Failed to scan for due giveaways", err)
		return
	}
	if len(due) == 0 {
		return
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentDraws)
	for _, g := range due {
		eg.Go(func() error {
			s.process(ctx, g)
			return nil
		})
	}
	_ = eg.Wait()

	logger.LogTick(len(due), time.Since(start))
}

// process advances one giveaway as far as it can get this tick. Failures are
// logged and left for the next tick; one giveaway never aborts the batch.
func (s *Scheduler) process(ctx context.Context, g *models.Giveaway) {
	if !g.Ended {
		if err := s.lifecycle.Draw(ctx, g); err != nil {
			slog.Error("Draw failed, will retry next tick",
				slog.Int64("giveaway_id", g.ID),
				slog.Any("error", err))
			return
		}
	}

	// The publish call gets its own deadline so a hung gateway cannot stall
	// the loop; a timeout is a retryable failure, not a crash.
	announceCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.lifecycle.Announce(announceCtx, g.ID); err != nil {
		slog.Error("Announce failed, will retry next tick",
			slog.Int64("giveaway_id", g.ID),
			slog.Any("error", err))
	}
}

// Shutdown stops the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Shutdown() {
	close(s.shutdown)
	<-s.done
	slog.Info("Giveaway scheduler shutdown completed")
}

package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/repositories"
	"github.com/disgoorg/snowflake/v2"
)

// Lifecycle drives a giveaway through its state machine:
//
//	OPEN -> ENDED_DRAWN | ENDED_EMPTY | CANCELED -> ANNOUNCED
//
// Transitions are monotonic and enforced by the repository's guarded writes,
// so every step is idempotent under retries and across overlapping processes.
type Lifecycle struct {
	repo      repositories.GiveawayRepository
	notifier  *Notifier
	operators []snowflake.ID
}

func NewLifecycle(repo repositories.GiveawayRepository, notifier *Notifier, operators []snowflake.ID) *Lifecycle {
	return &Lifecycle{
		repo:      repo,
		notifier:  notifier,
		operators: operators,
	}
}

// Draw computes and persists the winners batch for a due giveaway. The batch
// and the ended flag are one unit of work in the store; losing the guard to a
// concurrent draw is not an error. A giveaway that closes with zero entrants
// is marked ended with no winners rows.
func (l *Lifecycle) Draw(ctx context.Context, g *models.Giveaway) error {
	if g.Ended {
		return nil
	}

	participants, err := l.repo.GetParticipants(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}

	var winners []*models.Winner
	if len(participants) > 0 {
		selected := SelectWinners(g.Seed, g.ID, participants, g.WinnerCount)
		winners = make([]*models.Winner, len(selected))
		for i, p := range selected {
			winners[i] = &models.Winner{
				GiveawayID: g.ID,
				UserID:     p.UserID,
				Username:   p.Username,
				Position:   i + 1,
			}
		}
	}

	if err := l.repo.EndWithWinners(ctx, g.ID, winners); err != nil {
		if errors.Is(err, repositories.ErrAlreadyEnded) {
			return nil
		}
		return fmt.Errorf("failed to persist draw: %w", err)
	}

	slog.Info("Giveaway drawn",
		slog.Int64("giveaway_id", g.ID),
		slog.Int("participants", len(participants)),
		slog.Int("winners", len(winners)))
	return nil
}

// Announce publishes the persisted result and, only on a successful publish,
// flips the announced flag. The winners batch is always re-read from the
// store so the step is re-runnable after a crash between draw and announce.
func (l *Lifecycle) Announce(ctx context.Context, giveawayID int64) error {
	g, err := l.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return fmt.Errorf("failed to reload giveaway: %w", err)
	}

	if g.Canceled || g.Announced {
		return nil
	}
	if !g.Ended {
		return fmt.Errorf("giveaway %d not ended yet", g.ID)
	}

	winners, err := l.repo.GetWinners(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("failed to load winners: %w", err)
	}

	if len(winners) == 0 {
		count, err := l.repo.CountParticipants(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}
		if count > 0 {
			// Ended with entrants but no winners rows. Do not fabricate a
			// result; leave it for the next tick and manual inspection.
			slog.Error("Giveaway ended but winners batch is missing",
				slog.Int64("giveaway_id", g.ID),
				slog.Int("participants", count))
			return fmt.Errorf("giveaway %d ended with %d participants but no winners recorded", g.ID, count)
		}
	}

	if err := l.notifier.AnnounceResult(ctx, g, winners); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	if err := l.repo.MarkAnnounced(ctx, g.ID); err != nil {
		if errors.Is(err, repositories.ErrAlreadyAnnounced) {
			return nil
		}
		return fmt.Errorf("failed to mark announced: %w", err)
	}

	slog.Info("Giveaway announced",
		slog.Int64("giveaway_id", g.ID),
		slog.Int("winners", len(winners)))

	// Proof delivery is best-effort and off the critical path.
	go l.notifier.SendProof(context.Background(), g, l.operators)

	return nil
}

// Cancel transitions an open giveaway to CANCELED and rewrites the public
// post. Returns repositories.ErrAlreadyEnded when the giveaway already left
// the OPEN state, so callers can tell the operator nothing happened.
func (l *Lifecycle) Cancel(ctx context.Context, giveawayID int64, reason string) error {
	if err := l.repo.Cancel(ctx, giveawayID, reason); err != nil {
		return err
	}

	// The message edit is a projection of the authoritative state; failures
	// do not unwind the transition.
	if g, err := l.repo.GetByID(ctx, giveawayID); err == nil {
		l.notifier.NotifyCancellation(ctx, g)
	}
	return nil
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GiveawayState string

const (
	GiveawayStateOpen      GiveawayState = "open"
	GiveawayStateEnded     GiveawayState = "ended"
	GiveawayStateCanceled  GiveawayState = "canceled"
	GiveawayStateAnnounced GiveawayState = "announced"
)

type Giveaway struct {
	bun.BaseModel `bun:"table:giveaways,alias:g"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Prize       string `bun:"prize,notnull"`
	Sponsor     string `bun:"sponsor"`
	WinnerCount int    `bun:"winner_count,notnull"`
	CreatorID   string `bun:"creator_id,notnull"`
	ChannelID   string `bun:"channel_id,notnull"`
	MessageID   string `bun:"message_id"`

	// Commit-reveal fairness scheme. SeedHash is published with the giveaway
	// post before any entries are accepted; Seed stays secret until the
	// giveaway reaches a terminal, non-canceled state.
	Seed     string `bun:"seed,notnull"`
	SeedHash string `bun:"seed_hash,notnull"`

	Ended        bool   `bun:"ended,notnull,default:false"`
	Canceled     bool   `bun:"canceled,notnull,default:false"`
	Announced    bool   `bun:"announced,notnull,default:false"`
	CancelReason string `bun:"cancel_reason"`

	CloseTime   time.Time  `bun:"close_time,notnull"`
	EndedAt     *time.Time `bun:"ended_at,nullzero"`
	AnnouncedAt *time.Time `bun:"announced_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// State derives the lifecycle state from the persisted flags. Announced and
// canceled are both terminal; announced implies ended, canceled implies ended.
func (g *Giveaway) State() GiveawayState {
	switch {
	case g.Canceled:
		return GiveawayStateCanceled
	case g.Announced:
		return GiveawayStateAnnounced
	case g.Ended:
		return GiveawayStateEnded
	default:
		return GiveawayStateOpen
	}
}

// Due reports whether the giveaway should be picked up by the scheduler.
func (g *Giveaway) Due(now time.Time) bool {
	return !g.Canceled && !g.Announced && !g.CloseTime.After(now)
}

type Participant struct {
	bun.BaseModel `bun:"table:giveaway_participants,alias:gp"`

	ID         int64     `bun:"id,pk,autoincrement"`
	GiveawayID int64     `bun:"giveaway_id,notnull"`
	UserID     string    `bun:"user_id,notnull"`
	Username   string    `bun:"username,notnull"`
	JoinedAt   time.Time `bun:"joined_at,notnull,default:current_timestamp"`
}

type Winner struct {
	bun.BaseModel `bun:"table:giveaway_winners,alias:gw"`

	ID         int64     `bun:"id,pk,autoincrement"`
	GiveawayID int64     `bun:"giveaway_id,notnull"`
	UserID     string    `bun:"user_id,notnull"`
	Username   string    `bun:"username,notnull"`
	Position   int       `bun:"position,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

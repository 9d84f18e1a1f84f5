package giveaway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/repositories"
	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"
)

const membershipCacheSize = 1024

var (
	// ErrNotClosed is returned for operator actions that need a drawn
	// giveaway, e.g. a manual re-announce before close time.
	ErrNotClosed = errors.New("giveaway has not closed yet")
	// ErrCanceled is returned for actions that are invalid on a canceled
	// giveaway.
	ErrCanceled = errors.New("giveaway was canceled")
)

// JoinResult tells a join handler what to answer the member.
type JoinResult int

const (
	JoinOK JoinResult = iota
	JoinAlreadyJoined
	JoinClosed
	JoinNotMember
)

// CreateOptions carries the validated operator input for opening a giveaway.
type CreateOptions struct {
	Prize       string
	Sponsor     string
	WinnerCount int
	Duration    time.Duration
	CreatorID   snowflake.ID
	ChannelID   snowflake.ID
}

// Manager owns the giveaway engine: the record store handle, the messaging
// gateway, the lifecycle state machine and the scheduler that drives it.
type Manager struct {
	repo      repositories.GiveawayRepository
	operators []snowflake.ID

	gateway         Gateway
	notifier        *Notifier
	lifecycle       *Lifecycle
	scheduler       *Scheduler
	sessions        *Sessions
	membershipCache *lru.Cache

	tickInterval time.Duration
}

func NewManager(repo repositories.GiveawayRepository, operators []snowflake.ID, tickInterval time.Duration) *Manager {
	cache, _ := lru.New(membershipCacheSize)
	return &Manager{
		repo:            repo,
		operators:       operators,
		sessions:        NewSessions(10 * time.Minute),
		membershipCache: cache,
		tickInterval:    tickInterval,
	}
}

// SetClient wires the Discord client once the bot is built, completing the
// gateway-dependent components.
func (m *Manager) SetClient(client bot.Client) {
	m.SetGateway(NewDiscordGateway(client))
}

// SetGateway injects a messaging gateway directly. Tests use it to
// substitute a fake for Discord.
func (m *Manager) SetGateway(gateway Gateway) {
	m.gateway = gateway
	m.notifier = NewNotifier(gateway)
	m.lifecycle = NewLifecycle(m.repo, m.notifier, m.operators)
	m.scheduler = NewScheduler(m.repo, m.lifecycle, m.tickInterval)
}

func (m *Manager) Repository() repositories.GiveawayRepository { return m.repo }
func (m *Manager) Sessions() *Sessions                         { return m.sessions }
func (m *Manager) Lifecycle() *Lifecycle                       { return m.lifecycle }

// Start launches the scheduler loop and the wizard session sweeper.
func (m *Manager) Start(ctx context.Context) {
	m.scheduler.Start()
	m.sessions.StartCleanupRoutine(ctx)
}

func (m *Manager) Shutdown() {
	m.scheduler.Shutdown()
}

// CreateGiveaway validates the input, generates the seed commitment, persists
// the new OPEN giveaway and publishes the public post with the join button.
func (m *Manager) CreateGiveaway(ctx context.Context, opts CreateOptions) (*models.Giveaway, error) {
	if opts.Prize == "" {
		return nil, fmt.Errorf("prize is required")
	}
	if opts.WinnerCount < 1 {
		return nil, fmt.Errorf("winner count must be at least 1")
	}
	if opts.Duration < time.Minute {
		return nil, fmt.Errorf("duration must be at least one minute")
	}

	channelID := opts.ChannelID
	if channelID == 0 {
		stored, err := m.repo.GetSetting(ctx, models.SettingBroadcastChannel)
		if err != nil || stored == "" {
			return nil, fmt.Errorf("no channel given and no default broadcast channel configured")
		}
		channelID, err = snowflake.Parse(stored)
		if err != nil {
			return nil, fmt.Errorf("invalid default broadcast channel %q: %w", stored, err)
		}
	}

	seed, seedHash, err := NewCommitment()
	if err != nil {
		return nil, err
	}

	g := &models.Giveaway{
		Prize:       opts.Prize,
		Sponsor:     opts.Sponsor,
		WinnerCount: opts.WinnerCount,
		CreatorID:   opts.CreatorID.String(),
		ChannelID:   channelID.String(),
		Seed:        seed,
		SeedHash:    seedHash,
		CloseTime:   time.Now().Add(opts.Duration),
	}

	if err := m.repo.Create(ctx, g); err != nil {
		return nil, err
	}

	messageID, err := m.notifier.PostGiveaway(ctx, g)
	if err != nil {
		// Without a public post nobody can enter; fold the giveaway back
		// instead of leaving an invisible open record.
		if cancelErr := m.repo.Cancel(ctx, g.ID, "failed to publish giveaway post"); cancelErr != nil {
			slog.Error("Failed to cancel unpublished giveaway",
				slog.Int64("giveaway_id", g.ID),
				slog.Any("error", cancelErr))
		}
		return nil, fmt.Errorf("failed to publish giveaway post: %w", err)
	}

	g.MessageID = messageID.String()
	if err := m.repo.UpdateMessageRef(ctx, g.ID, g.ChannelID, g.MessageID); err != nil {
		slog.Error("Failed to store giveaway message reference",
			slog.Int64("giveaway_id", g.ID),
			slog.Any("error", err))
	}

	slog.Info("Giveaway created",
		slog.Int64("giveaway_id", g.ID),
		slog.String("prize", g.Prize),
		slog.Int("winner_count", g.WinnerCount),
		slog.Time("close_time", g.CloseTime),
		slog.String("seed_hash", g.SeedHash))

	return g, nil
}

// Join registers a member for an open giveaway. Joins are gated to verified
// guild members; a repeated join reports JoinAlreadyJoined without touching
// state.
func (m *Manager) Join(ctx context.Context, giveawayID int64, guildID snowflake.ID, userID snowflake.ID, username string) (JoinResult, error) {
	g, err := m.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return 0, err
	}

	if g.Ended || g.Canceled || time.Now().After(g.CloseTime) {
		return JoinClosed, nil
	}

	isMember, err := m.checkMembership(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	if !isMember {
		return JoinNotMember, nil
	}

	joined, err := m.repo.AddParticipant(ctx, &models.Participant{
		GiveawayID: giveawayID,
		UserID:     userID.String(),
		Username:   username,
	})
	if err != nil {
		return 0, err
	}
	if !joined {
		return JoinAlreadyJoined, nil
	}

	// The counter on the post is cosmetic; the participants table is the
	// authoritative count. Update it off the join path.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		count, err := m.repo.CountParticipants(ctx, giveawayID)
		if err != nil {
			return
		}
		m.notifier.UpdateJoinCount(ctx, g, count)
	}()

	return JoinOK, nil
}

// Reannounce republishes the result of an ended, non-canceled giveaway on
// operator request, using the persisted winners batch.
func (m *Manager) Reannounce(ctx context.Context, giveawayID int64) error {
	g, err := m.repo.GetByID(ctx, giveawayID)
	if err != nil {
		return err
	}
	if g.Canceled {
		return ErrCanceled
	}
	if !g.Ended {
		return ErrNotClosed
	}

	winners, err := m.repo.GetWinners(ctx, giveawayID)
	if err != nil {
		return err
	}

	if err := m.notifier.AnnounceResult(ctx, g, winners); err != nil {
		return err
	}

	if !g.Announced {
		if err := m.repo.MarkAnnounced(ctx, giveawayID); err != nil &&
			!errors.Is(err, repositories.ErrAlreadyAnnounced) {
			return err
		}
	}
	return nil
}

// checkMembership caches positive membership checks so a burst of joins does
// not hammer the gateway. Negative results are not cached; a user can join
// the guild and enter right away.
func (m *Manager) checkMembership(ctx context.Context, guildID snowflake.ID, userID snowflake.ID) (bool, error) {
	key := guildID.String() + ":" + userID.String()
	if _, ok := m.membershipCache.Get(key); ok {
		return true, nil
	}

	isMember, err := m.gateway.IsMember(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	if isMember {
		m.membershipCache.Add(key, struct{}{})
	}
	return isMember, nil
}

// ParseGiveawayID converts operator-typed ids, tolerating a leading '#'.
func ParseGiveawayID(raw string) (int64, error) {
	if len(raw) > 0 && raw[0] == '#' {
		raw = raw[1:]
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid giveaway id %q", raw)
	}
	return id, nil
}

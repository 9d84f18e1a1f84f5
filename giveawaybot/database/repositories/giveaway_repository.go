package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/sahilm/fuzzy"
	"github.com/uptrace/bun"
)

var (
	// ErrAlreadyEnded is returned when a draw or cancel guard finds the
	// giveaway already past the OPEN state. Callers treat it as "already
	// done", not as a failure.
	ErrAlreadyEnded = errors.New("giveaway already ended")
	// ErrAlreadyAnnounced is returned when the announce guard finds the
	// result already published.
	ErrAlreadyAnnounced = errors.New("giveaway already announced")
	// ErrNotFound is returned for point lookups that match no giveaway.
	ErrNotFound = errors.New("giveaway not found")
)

type GiveawayRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, giveaway *models.Giveaway) error
	GetByID(ctx context.Context, id int64) (*models.Giveaway, error)
	GetActive(ctx context.Context) ([]*models.Giveaway, error)
	GetDue(ctx context.Context, now time.Time) ([]*models.Giveaway, error)
	SearchActiveByPrize(ctx context.Context, query string) ([]*models.Giveaway, error)
	UpdateMessageRef(ctx context.Context, id int64, channelID, messageID string) error
	Cancel(ctx context.Context, id int64, reason string) error
	EndWithWinners(ctx context.Context, id int64, winners []*models.Winner) error
	MarkAnnounced(ctx context.Context, id int64) error
	AddParticipant(ctx context.Context, participant *models.Participant) (bool, error)
	GetParticipants(ctx context.Context, giveawayID int64) ([]*models.Participant, error)
	CountParticipants(ctx context.Context, giveawayID int64) (int, error)
	GetWinners(ctx context.Context, giveawayID int64) ([]*models.Winner, error)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type giveawayRepository struct {
	db *bun.DB
}

func NewGiveawayRepository(db *bun.DB) GiveawayRepository {
	return &giveawayRepository{db: db}
}

func (r *giveawayRepository) DB() *bun.DB {
	return r.db
}

func (r *giveawayRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	giveaway.CreatedAt = time.Now()
	giveaway.Ended = false
	giveaway.Canceled = false
	giveaway.Announced = false

	_, err := r.db.NewInsert().Model(giveaway).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	return nil
}

func (r *giveawayRepository) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	giveaway := new(models.Giveaway)
	err := r.db.NewSelect().
		Model(giveaway).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return giveaway, nil
}

func (r *giveawayRepository) GetActive(ctx context.Context) ([]*models.Giveaway, error) {
	var giveaways []*models.Giveaway

	err := r.db.NewSelect().
		Model(&giveaways).
		Where("ended = ?", false).
		Where("canceled = ?", false).
		Order("close_time ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get active giveaways: %w", err)
	}
	return giveaways, nil
}

// GetDue returns all giveaways whose close time has passed but which have not
// reached a terminal transition. Includes ended-but-unannounced rows so the
// announce step is retried after a crash or a failed publish.
func (r *giveawayRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Giveaway, error) {
	var giveaways []*models.Giveaway

	err := r.db.NewSelect().
		Model(&giveaways).
		Where("canceled = ?", false).
		Where("announced = ?", false).
		Where("close_time <= ?", now).
		Order("close_time ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get due giveaways: %w", err)
	}
	return giveaways, nil
}

func (r *giveawayRepository) SearchActiveByPrize(ctx context.Context, query string) ([]*models.Giveaway, error) {
	active, err := r.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	prizes := make([]string, len(active))
	for i, g := range active {
		prizes[i] = g.Prize
	}

	matches := fuzzy.Find(query, prizes)
	results := make([]*models.Giveaway, 0, len(matches))
	for _, m := range matches {
		results = append(results, active[m.Index])
	}
	return results, nil
}

func (r *giveawayRepository) UpdateMessageRef(ctx context.Context, id int64, channelID, messageID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("channel_id = ?", channelID).
		Set("message_id = ?", messageID).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update giveaway message: %w", err)
	}
	return nil
}

// Cancel transitions OPEN -> CANCELED. The ended=false guard makes it a no-op
// with ErrAlreadyEnded when the giveaway was drawn or canceled concurrently.
func (r *giveawayRepository) Cancel(ctx context.Context, id int64, reason string) error {
	result, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("canceled = ?", true).
		Set("ended = ?", true).
		Set("ended_at = ?", time.Now()).
		Set("cancel_reason = ?", reason).
		Where("id = ?", id).
		Where("ended = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to cancel giveaway: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyEnded
	}

	slog.Info("Giveaway canceled",
		slog.String("type", "db"),
		slog.Int64("giveaway_id", id),
		slog.String("reason", reason))
	return nil
}

// EndWithWinners transitions OPEN -> ENDED_DRAWN (or ENDED_EMPTY when winners
// is empty). The winners batch and the ended flag are written in one
// transaction, guarded on ended=false so a concurrent draw loses cleanly.
func (r *giveawayRepository) EndWithWinners(ctx context.Context, id int64, winners []*models.Winner) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("ended = ?", true).
		Set("ended_at = ?", time.Now()).
		Where("id = ?", id).
		Where("ended = ?", false).
		Where("canceled = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to end giveaway: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyEnded
	}

	if len(winners) > 0 {
		now := time.Now()
		for _, w := range winners {
			w.GiveawayID = id
			w.CreatedAt = now
		}
		if _, err := tx.NewInsert().Model(&winners).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert winners: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draw: %w", err)
	}

	slog.Info("Giveaway ended",
		slog.String("type", "db"),
		slog.Int64("giveaway_id", id),
		slog.Int("winners", len(winners)))
	return nil
}

// MarkAnnounced transitions ENDED_* -> ANNOUNCED. Only called after the public
// publish reported success; the announced=false guard keeps it at-most-once.
func (r *giveawayRepository) MarkAnnounced(ctx context.Context, id int64) error {
	result, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("announced = ?", true).
		Set("announced_at = ?", time.Now()).
		Where("id = ?", id).
		Where("ended = ?", true).
		Where("canceled = ?", false).
		Where("announced = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark giveaway announced: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyAnnounced
	}
	return nil
}

// AddParticipant registers a join. Returns false without error when the
// (giveaway, user) pair already exists; the unique index carries the guard.
func (r *giveawayRepository) AddParticipant(ctx context.Context, participant *models.Participant) (bool, error) {
	participant.JoinedAt = time.Now()

	result, err := r.db.NewInsert().
		Model(participant).
		On("CONFLICT (giveaway_id, user_id) DO NOTHING").
		Exec(ctx)

	if err != nil {
		return false, fmt.Errorf("failed to add participant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (r *giveawayRepository) GetParticipants(ctx context.Context, giveawayID int64) ([]*models.Participant, error) {
	var participants []*models.Participant

	err := r.db.NewSelect().
		Model(&participants).
		Where("giveaway_id = ?", giveawayID).
		Order("joined_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return participants, nil
}

func (r *giveawayRepository) CountParticipants(ctx context.Context, giveawayID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.Participant)(nil)).
		Where("giveaway_id = ?", giveawayID).
		Count(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *giveawayRepository) GetWinners(ctx context.Context, giveawayID int64) ([]*models.Winner, error) {
	var winners []*models.Winner

	err := r.db.NewSelect().
		Model(&winners).
		Where("giveaway_id = ?", giveawayID).
		Order("position ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get winners: %w", err)
	}
	return winners, nil
}

func (r *giveawayRepository) GetSetting(ctx context.Context, key string) (string, error) {
	setting := new(models.Setting)
	err := r.db.NewSelect().
		Model(setting).
		Where("key = ?", key).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return setting.Value, nil
}

func (r *giveawayRepository) SetSetting(ctx context.Context, key, value string) error {
	setting := &models.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	_, err := r.db.NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

package giveaway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/repositories"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// memoryStore is an in-memory GiveawayRepository with the same guard
// semantics as the bun implementation.
type memoryStore struct {
	mu           sync.Mutex
	nextID       int64
	giveaways    map[int64]*models.Giveaway
	participants map[int64][]*models.Participant
	winners      map[int64][]*models.Winner
	settings     map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:       1,
		giveaways:    make(map[int64]*models.Giveaway),
		participants: make(map[int64][]*models.Participant),
		winners:      make(map[int64][]*models.Winner),
		settings:     make(map[string]string),
	}
}

func (s *memoryStore) DB() *bun.DB { return nil }

func (s *memoryStore) Create(_ context.Context, g *models.Giveaway) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.nextID
	s.nextID++
	g.CreatedAt = time.Now()
	copied := *g
	s.giveaways[g.ID] = &copied
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id int64) (*models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.giveaways[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *memoryStore) GetActive(_ context.Context) ([]*models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Giveaway
	for _, g := range s.giveaways {
		if !g.Ended && !g.Canceled {
			copied := *g
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) GetDue(_ context.Context, now time.Time) ([]*models.Giveaway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Giveaway
	for _, g := range s.giveaways {
		if g.Due(now) {
			copied := *g
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) SearchActiveByPrize(ctx context.Context, _ string) ([]*models.Giveaway, error) {
	return s.GetActive(ctx)
}

func (s *memoryStore) UpdateMessageRef(_ context.Context, id int64, channelID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.giveaways[id]; ok {
		g.ChannelID = channelID
		g.MessageID = messageID
	}
	return nil
}

func (s *memoryStore) Cancel(_ context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.giveaways[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if g.Ended {
		return repositories.ErrAlreadyEnded
	}
	now := time.Now()
	g.Canceled = true
	g.Ended = true
	g.EndedAt = &now
	g.CancelReason = reason
	return nil
}

func (s *memoryStore) EndWithWinners(_ context.Context, id int64, winners []*models.Winner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.giveaways[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if g.Ended || g.Canceled {
		return repositories.ErrAlreadyEnded
	}
	now := time.Now()
	g.Ended = true
	g.EndedAt = &now
	for _, w := range winners {
		w.GiveawayID = id
		copied := *w
		s.winners[id] = append(s.winners[id], &copied)
	}
	return nil
}

func (s *memoryStore) MarkAnnounced(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.giveaways[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if !g.Ended || g.Canceled || g.Announced {
		return repositories.ErrAlreadyAnnounced
	}
	now := time.Now()
	g.Announced = true
	g.AnnouncedAt = &now
	return nil
}

func (s *memoryStore) AddParticipant(_ context.Context, p *models.Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants[p.GiveawayID] {
		if existing.UserID == p.UserID {
			return false, nil
		}
	}
	p.JoinedAt = time.Now()
	copied := *p
	s.participants[p.GiveawayID] = append(s.participants[p.GiveawayID], &copied)
	return true, nil
}

func (s *memoryStore) GetParticipants(_ context.Context, giveawayID int64) ([]*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Participant, len(s.participants[giveawayID]))
	for i, p := range s.participants[giveawayID] {
		copied := *p
		out[i] = &copied
	}
	return out, nil
}

func (s *memoryStore) CountParticipants(_ context.Context, giveawayID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants[giveawayID]), nil
}

func (s *memoryStore) GetWinners(_ context.Context, giveawayID int64) ([]*models.Winner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Winner, len(s.winners[giveawayID]))
	for i, w := range s.winners[giveawayID] {
		copied := *w
		out[i] = &copied
	}
	return out, nil
}

func (s *memoryStore) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[key], nil
}

func (s *memoryStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// fakeGateway records outbound traffic and can fail a configured number of
// public sends before succeeding.
type fakeGateway struct {
	mu            sync.Mutex
	failSends     int
	member        bool
	nextMessageID snowflake.ID

	publicSends  []discord.MessageCreate
	publicEdits  []discord.MessageUpdate
	privateSends []discord.MessageCreate
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{member: true, nextMessageID: 1000}
}

func (g *fakeGateway) SendPublic(_ context.Context, _ snowflake.ID, message discord.MessageCreate) (snowflake.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSends > 0 {
		g.failSends--
		return 0, fmt.Errorf("send rejected")
	}
	g.publicSends = append(g.publicSends, message)
	g.nextMessageID++
	return g.nextMessageID, nil
}

func (g *fakeGateway) EditPublic(_ context.Context, _ snowflake.ID, _ snowflake.ID, update discord.MessageUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.publicEdits = append(g.publicEdits, update)
	return nil
}

func (g *fakeGateway) SendPrivate(_ context.Context, _ snowflake.ID, message discord.MessageCreate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.privateSends = append(g.privateSends, message)
	return nil
}

func (g *fakeGateway) IsMember(_ context.Context, _ snowflake.ID, _ snowflake.ID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.member, nil
}

func (g *fakeGateway) publicSendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.publicSends)
}

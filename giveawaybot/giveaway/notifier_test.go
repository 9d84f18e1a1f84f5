package giveaway

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/disgoorg/snowflake/v2"
)

func testGiveaway() *models.Giveaway {
	return &models.Giveaway{
		ID:          7,
		Prize:       "Mystery Box",
		Sponsor:     "Acme",
		WinnerCount: 2,
		ChannelID:   "555",
		MessageID:   "556",
		Seed:        "deadbeef",
		SeedHash:    "cafebabe0123456789",
		CloseTime:   time.Now().Add(time.Hour),
	}
}

func TestPostGiveaway(t *testing.T) {
	gateway := newFakeGateway()
	notifier := NewNotifier(gateway)
	g := testGiveaway()

	messageID, err := notifier.PostGiveaway(context.Background(), g)
	if err != nil {
		t.Fatalf("PostGiveaway failed: %v", err)
	}
	if messageID == 0 {
		t.Error("PostGiveaway returned a zero message id")
	}

	msg := gateway.publicSends[0]
	if len(msg.Components) != 1 {
		t.Fatalf("expected one component row, got %d", len(msg.Components))
	}
	row, ok := msg.Components[0].(discord.ActionRowComponent)
	if !ok {
		t.Fatalf("component is %T, want action row", msg.Components[0])
	}
	button, ok := row.Components()[0].(discord.ButtonComponent)
	if !ok {
		t.Fatalf("row child is %T, want button", row.Components()[0])
	}
	if want := fmt.Sprintf("/giveaway/join/%d", g.ID); button.CustomID != want {
		t.Errorf("join button custom id = %q, want %q", button.CustomID, want)
	}

	description := msg.Embeds[0].Description
	if !strings.Contains(description, g.Prize) {
		t.Error("post is missing the prize")
	}
	if strings.Contains(description, g.Seed) {
		t.Error("post leaks the secret seed")
	}
}

func TestPostGiveawayBadChannel(t *testing.T) {
	notifier := NewNotifier(newFakeGateway())
	g := testGiveaway()
	g.ChannelID = "not-a-snowflake"

	if _, err := notifier.PostGiveaway(context.Background(), g); err == nil {
		t.Fatal("expected error for unparseable channel id")
	}
}

func TestSendProofRevealGating(t *testing.T) {
	operators := []snowflake.ID{1, 2}

	tests := []struct {
		name     string
		ended    bool
		canceled bool
		wantSeed bool
	}{
		{"after draw", true, false, true},
		{"still open", false, false, false},
		{"canceled", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := newFakeGateway()
			notifier := NewNotifier(gateway)

			g := testGiveaway()
			g.Ended = tt.ended
			g.Canceled = tt.canceled

			notifier.SendProof(context.Background(), g, operators)

			if len(gateway.privateSends) != len(operators) {
				t.Fatalf("sent %d DMs, want %d", len(gateway.privateSends), len(operators))
			}
			description := gateway.privateSends[0].Embeds[0].Description
			if !strings.Contains(description, g.SeedHash) {
				t.Error("proof is missing the commitment hash")
			}
			if got := strings.Contains(description, g.Seed); got != tt.wantSeed {
				t.Errorf("seed revealed = %v, want %v", got, tt.wantSeed)
			}
		})
	}
}

func TestSendProofNoRecipients(t *testing.T) {
	gateway := newFakeGateway()
	NewNotifier(gateway).SendProof(context.Background(), testGiveaway(), nil)

	if len(gateway.privateSends) != 0 {
		t.Errorf("sent %d DMs with no recipients configured", len(gateway.privateSends))
	}
}

func TestNotifyCancellationEditsPost(t *testing.T) {
	gateway := newFakeGateway()
	notifier := NewNotifier(gateway)

	g := testGiveaway()
	g.Canceled = true
	g.CancelReason = "sponsor pulled out"

	notifier.NotifyCancellation(context.Background(), g)

	if len(gateway.publicEdits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(gateway.publicEdits))
	}
	edit := gateway.publicEdits[0]
	if edit.Components == nil || len(*edit.Components) != 0 {
		t.Error("cancellation edit did not strip the join button")
	}
	if !strings.Contains((*edit.Embeds)[0].Description, g.CancelReason) {
		t.Error("cancellation edit is missing the reason")
	}
}

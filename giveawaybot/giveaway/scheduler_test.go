package giveaway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
)

func newTestScheduler(t *testing.T) (*memoryStore, *fakeGateway, *Scheduler) {
	t.Helper()
	store := newMemoryStore()
	gateway := newFakeGateway()
	lifecycle := NewLifecycle(store, NewNotifier(gateway), nil)
	return store, gateway, NewScheduler(store, lifecycle, time.Minute)
}

func TestSchedulerIntervalFloor(t *testing.T) {
	store := newMemoryStore()
	lifecycle := NewLifecycle(store, NewNotifier(newFakeGateway()), nil)

	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{"unset uses default", 0, DefaultTickInterval},
		{"below floor is clamped", time.Second, MinTickInterval},
		{"configured value kept", 2 * time.Minute, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(store, lifecycle, tt.interval)
			if s.interval != tt.want {
				t.Errorf("interval = %s, want %s", s.interval, tt.want)
			}
		})
	}
}

func TestTickDrawsAndAnnounces(t *testing.T) {
	store, gateway, scheduler := newTestScheduler(t)
	g := seedGiveaway(t, store, 2, -time.Minute)
	addEntrants(t, store, g.ID, 5)

	scheduler.Tick(context.Background())

	stored, _ := store.GetByID(context.Background(), g.ID)
	if stored.State() != models.GiveawayStateAnnounced {
		t.Fatalf("state after tick = %s, want %s", stored.State(), models.GiveawayStateAnnounced)
	}
	if winners, _ := store.GetWinners(context.Background(), g.ID); len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(winners))
	}
	if got := gateway.publicSendCount(); got != 1 {
		t.Fatalf("published %d messages, want 1", got)
	}

	// An announced giveaway is no longer due; further ticks must not touch it.
	scheduler.Tick(context.Background())
	if got := gateway.publicSendCount(); got != 1 {
		t.Fatalf("second tick republished the result, %d messages total", got)
	}
}

func TestTickLeavesOpenGiveawaysAlone(t *testing.T) {
	store, gateway, scheduler := newTestScheduler(t)
	g := seedGiveaway(t, store, 1, time.Hour)
	addEntrants(t, store, g.ID, 3)

	scheduler.Tick(context.Background())

	stored, _ := store.GetByID(context.Background(), g.ID)
	if stored.Ended {
		t.Error("open giveaway was drawn before its close time")
	}
	if got := gateway.publicSendCount(); got != 0 {
		t.Errorf("published %d messages for an open giveaway", got)
	}
}

func TestTickRetriesFailedPublish(t *testing.T) {
	store, gateway, scheduler := newTestScheduler(t)
	g := seedGiveaway(t, store, 1, -time.Minute)
	addEntrants(t, store, g.ID, 4)

	gateway.mu.Lock()
	gateway.failSends = 2
	gateway.mu.Unlock()

	// First tick: the draw persists, the publish fails.
	scheduler.Tick(context.Background())
	afterFirst, _ := store.GetByID(context.Background(), g.ID)
	if !afterFirst.Ended {
		t.Fatal("draw did not persist despite the failed publish")
	}
	if afterFirst.Announced {
		t.Fatal("giveaway marked announced although the publish failed")
	}
	firstWinners, _ := store.GetWinners(context.Background(), g.ID)
	if len(firstWinners) != 1 {
		t.Fatalf("expected 1 winner, got %d", len(firstWinners))
	}

	// Second tick fails again, third succeeds. The winner must never change.
	scheduler.Tick(context.Background())
	scheduler.Tick(context.Background())

	final, _ := store.GetByID(context.Background(), g.ID)
	if final.State() != models.GiveawayStateAnnounced {
		t.Fatalf("state after retries = %s, want %s", final.State(), models.GiveawayStateAnnounced)
	}
	finalWinners, _ := store.GetWinners(context.Background(), g.ID)
	if len(finalWinners) != 1 || finalWinners[0].UserID != firstWinners[0].UserID {
		t.Fatalf("winner changed across retries: %v -> %v", firstWinners[0].UserID, finalWinners[0].UserID)
	}
	if got := gateway.publicSendCount(); got != 1 {
		t.Fatalf("result delivered %d times, want exactly 1", got)
	}
}

func TestTickRecoversEndedUnannounced(t *testing.T) {
	store, gateway, scheduler := newTestScheduler(t)
	g := seedGiveaway(t, store, 1, -time.Minute)
	addEntrants(t, store, g.ID, 3)

	// Simulate a crash after the draw committed but before the announce.
	if err := store.EndWithWinners(context.Background(), g.ID, []*models.Winner{
		{UserID: "9001", Username: "user1", Position: 1},
	}); err != nil {
		t.Fatalf("EndWithWinners failed: %v", err)
	}

	scheduler.Tick(context.Background())

	stored, _ := store.GetByID(context.Background(), g.ID)
	if stored.State() != models.GiveawayStateAnnounced {
		t.Fatalf("state = %s, want %s", stored.State(), models.GiveawayStateAnnounced)
	}
	winners, _ := store.GetWinners(context.Background(), g.ID)
	if len(winners) != 1 || winners[0].UserID != "9001" {
		t.Fatalf("recovery re-drew the winners: %+v", winners)
	}
	if got := gateway.publicSendCount(); got != 1 {
		t.Fatalf("published %d messages, want 1", got)
	}
}

func TestTickAnnouncesEmptyGiveawayOnce(t *testing.T) {
	store, gateway, scheduler := newTestScheduler(t)
	g := seedGiveaway(t, store, 3, -time.Minute)

	scheduler.Tick(context.Background())
	scheduler.Tick(context.Background())

	stored, _ := store.GetByID(context.Background(), g.ID)
	if stored.State() != models.GiveawayStateAnnounced {
		t.Fatalf("state = %s, want %s", stored.State(), models.GiveawayStateAnnounced)
	}
	if got := gateway.publicSendCount(); got != 1 {
		t.Fatalf("no-entrants notice delivered %d times, want 1", got)
	}

	gateway.mu.Lock()
	description := gateway.publicSends[0].Embeds[0].Description
	gateway.mu.Unlock()
	if !strings.Contains(description, "no entrants") {
		t.Errorf("empty close did not mention the missing entrants: %q", description)
	}
}

func TestTickIgnoresCanceledGiveaways(t *testing.T) {
	store, gateway, scheduler := newTestScheduler(t)
	g := seedGiveaway(t, store, 1, -time.Minute)
	addEntrants(t, store, g.ID, 2)

	if err := store.Cancel(context.Background(), g.ID, "test"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	scheduler.Tick(context.Background())

	if got := gateway.publicSendCount(); got != 0 {
		t.Fatalf("canceled giveaway produced %d messages", got)
	}
	if winners, _ := store.GetWinners(context.Background(), g.ID); len(winners) != 0 {
		t.Error("canceled giveaway was drawn")
	}
}

func TestTickProcessesBatch(t *testing.T) {
	store, gateway, scheduler := newTestScheduler(t)

	const n = 9
	for i := 0; i < n; i++ {
		g := seedGiveaway(t, store, 1, -time.Minute)
		addEntrants(t, store, g.ID, 2)
	}

	scheduler.Tick(context.Background())

	due, _ := store.GetDue(context.Background(), time.Now())
	if len(due) != 0 {
		t.Fatalf("%d giveaways still due after tick", len(due))
	}
	if got := gateway.publicSendCount(); got != n {
		t.Fatalf("published %d results, want %d", got, n)
	}
}

func TestSchedulerStartAndShutdown(t *testing.T) {
	store, _, _ := newTestScheduler(t)
	lifecycle := NewLifecycle(store, NewNotifier(newFakeGateway()), nil)
	scheduler := NewScheduler(store, lifecycle, time.Minute)

	scheduler.Start()
	scheduler.Shutdown()

	select {
	case <-scheduler.done:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop did not stop")
	}
}

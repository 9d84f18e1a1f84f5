package giveaway

import (
	"testing"

	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
)

func TestNewCommitment(t *testing.T) {
	seed, seedHash, err := NewCommitment()
	if err != nil {
		t.Fatalf("NewCommitment failed: %v", err)
	}

	if len(seed) != seedBytes*2 {
		t.Errorf("seed is %d hex chars, want %d", len(seed), seedBytes*2)
	}
	if len(seedHash) != 64 {
		t.Errorf("seed hash is %d hex chars, want 64", len(seedHash))
	}
	if !VerifyCommitment(seed, seedHash) {
		t.Error("freshly generated seed does not verify against its own hash")
	}

	seed2, seedHash2, err := NewCommitment()
	if err != nil {
		t.Fatalf("NewCommitment failed: %v", err)
	}
	if seed == seed2 || seedHash == seedHash2 {
		t.Error("two commitments produced identical output")
	}
}

func TestVerifyCommitmentRejectsWrongSeed(t *testing.T) {
	_, seedHash, err := NewCommitment()
	if err != nil {
		t.Fatalf("NewCommitment failed: %v", err)
	}

	if VerifyCommitment("not-the-seed", seedHash) {
		t.Error("wrong seed verified against commitment")
	}
	if VerifyCommitment("", seedHash) {
		t.Error("empty seed verified against commitment")
	}
}

func TestRevealedSeed(t *testing.T) {
	tests := []struct {
		name     string
		ended    bool
		canceled bool
		want     string
	}{
		{"open", false, false, HiddenSeed},
		{"ended", true, false, "secret"},
		{"canceled", true, true, HiddenSeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &models.Giveaway{Seed: "secret", Ended: tt.ended, Canceled: tt.canceled}
			if got := RevealedSeed(g); got != tt.want {
				t.Errorf("RevealedSeed = %q, want %q", got, tt.want)
			}
		})
	}
}

package giveaway

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
)

// seedBytes is the entropy drawn for each giveaway seed. 32 bytes keeps the
// seed infeasible to brute-force relative to any draw's value.
const seedBytes = 32

// HiddenSeed is shown in proof views while the seed must stay secret.
const HiddenSeed = "(hidden until the draw completes)"

// NewCommitment generates a fresh secret seed and its public commitment.
// The commitment hash is published with the giveaway post before any entries
// are accepted, so the seed cannot be chosen after seeing the participant set.
func NewCommitment() (seed string, seedHash string, err error) {
	buf := make([]byte, seedBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate seed: %w", err)
	}

	seed = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(seed))
	return seed, hex.EncodeToString(sum[:]), nil
}

// VerifyCommitment reports whether seed hashes to seedHash.
func VerifyCommitment(seed, seedHash string) bool {
	sum := sha256.Sum256([]byte(seed))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(seedHash)) == 1
}

// RevealedSeed returns the seed once the giveaway reached a terminal,
// non-canceled state, and a placeholder otherwise. The commitment hash is
// always visible; only the preimage is gated.
func RevealedSeed(g *models.Giveaway) string {
	if g.Ended && !g.Canceled {
		return g.Seed
	}
	return HiddenSeed
}

// VerificationFormula renders the recomputation recipe included in proof
// messages, so anyone holding the revealed seed can reproduce the draw.
func VerificationFormula(giveawayID int64) string {
	return fmt.Sprintf(
		"rank(p) = HMAC-SHA256(key = seed, msg = \"%d:\" + participant_id); winners = lowest ranks, ties by id",
		giveawayID,
	)
}

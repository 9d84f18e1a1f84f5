package giveaway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
)

// SelectWinners deterministically picks the winner list for a giveaway.
// Every participant is ranked by HMAC-SHA256(key = seed, msg =
// "<giveawayID>:<participantID>") and the lowest min(k, n) ranks win, ties
// broken by participant id ascending. The same inputs always produce the same
// ordered list, independent of the enumeration order of participants, and the
// ranking cannot be predicted or steered without the secret seed.
func SelectWinners(seed string, giveawayID int64, participants []*models.Participant, k int) []*models.Participant {
	if len(participants) == 0 || k <= 0 {
		return nil
	}

	type ranked struct {
		participant *models.Participant
		rank        []byte
	}

	rankedParticipants := make([]ranked, len(participants))
	for i, p := range participants {
		rankedParticipants[i] = ranked{
			participant: p,
			rank:        participantRank(seed, giveawayID, p.UserID),
		}
	}

	sort.Slice(rankedParticipants, func(i, j int) bool {
		if c := bytes.Compare(rankedParticipants[i].rank, rankedParticipants[j].rank); c != 0 {
			return c < 0
		}
		return rankedParticipants[i].participant.UserID < rankedParticipants[j].participant.UserID
	})

	if k > len(rankedParticipants) {
		k = len(rankedParticipants)
	}

	winners := make([]*models.Participant, k)
	for i := 0; i < k; i++ {
		winners[i] = rankedParticipants[i].participant
	}
	return winners
}

func participantRank(seed string, giveawayID int64, userID string) []byte {
	mac := hmac.New(sha256.New, []byte(seed))
	fmt.Fprintf(mac, "%d:%s", giveawayID, userID)
	return mac.Sum(nil)
}

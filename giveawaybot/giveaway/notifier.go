package giveaway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/disgoorg/giveaway-bot/giveawaybot/utils"
	"github.com/disgoorg/snowflake/v2"
)

const embedColor = 0x2b2d31

// Notifier renders and delivers every outbound giveaway message: the public
// post, the result announcement, cancellation edits and the operator proof DM.
// State transitions never depend on it except for the public announcement,
// whose reported success gates the announced flag.
type Notifier struct {
	gateway Gateway
}

func NewNotifier(gateway Gateway) *Notifier {
	return &Notifier{gateway: gateway}
}

// PostGiveaway publishes the giveaway post with the join button and the
// commitment hash, and returns the created message id.
func (n *Notifier) PostGiveaway(ctx context.Context, g *models.Giveaway) (snowflake.ID, error) {
	channelID, err := snowflake.Parse(g.ChannelID)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q: %w", g.ChannelID, err)
	}

	return n.gateway.SendPublic(ctx, channelID, discord.MessageCreate{
		Embeds: []discord.Embed{n.giveawayEmbed(g, 0)},
		Components: []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewPrimaryButton("🎉 Join", fmt.Sprintf("/giveaway/join/%d", g.ID)),
			),
		},
	})
}

// UpdateJoinCount refreshes the participant counter on the post. Purely
// cosmetic; the participants table is authoritative, so edit failures are
// logged and swallowed and the edit is not retried.
func (n *Notifier) UpdateJoinCount(ctx context.Context, g *models.Giveaway, count int) {
	channelID, err1 := snowflake.Parse(g.ChannelID)
	messageID, err2 := snowflake.Parse(g.MessageID)
	if err1 != nil || err2 != nil {
		return
	}

	embed := n.giveawayEmbed(g, count)
	if err := n.gateway.EditPublic(ctx, channelID, messageID, discord.MessageUpdate{
		Embeds: &[]discord.Embed{embed},
	}); err != nil {
		slog.Warn("Failed to update join counter",
			slog.Int64("giveaway_id", g.ID),
			slog.Any("error", err))
	}
}

// AnnounceResult publishes the winner list (or the no-entrants notice). The
// caller flips the announced flag only when this returns nil.
func (n *Notifier) AnnounceResult(ctx context.Context, g *models.Giveaway, winners []*models.Winner) error {
	channelID, err := snowflake.Parse(g.ChannelID)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", g.ChannelID, err)
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("🎉 Giveaway Ended").
		SetColor(embedColor).
		SetFooterText(fmt.Sprintf("Giveaway #%d • seed commitment %s", g.ID, utils.Shorten(g.SeedHash, 16)))

	if len(winners) == 0 {
		embed.SetDescription(fmt.Sprintf("**%s** closed with no entrants. Better luck next time!", g.Prize))
	} else {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Winners of **%s**:\n\n", g.Prize)
		for _, w := range winners {
			fmt.Fprintf(&sb, "`#%d` <@%s>\n", w.Position, w.UserID)
		}
		if g.Sponsor != "" {
			fmt.Fprintf(&sb, "\nSponsored by **%s**", g.Sponsor)
		}
		embed.SetDescription(sb.String())
	}

	if _, err := n.gateway.SendPublic(ctx, channelID, discord.MessageCreate{
		Embeds: []discord.Embed{embed.Build()},
	}); err != nil {
		return fmt.Errorf("failed to announce giveaway %d: %w", g.ID, err)
	}
	return nil
}

// NotifyCancellation rewrites the public post after a cancel. Best-effort;
// the state transition already happened and is authoritative.
func (n *Notifier) NotifyCancellation(ctx context.Context, g *models.Giveaway) {
	channelID, err1 := snowflake.Parse(g.ChannelID)
	messageID, err2 := snowflake.Parse(g.MessageID)
	if err1 != nil || err2 != nil {
		return
	}

	description := fmt.Sprintf("The giveaway for **%s** was canceled.", g.Prize)
	if g.CancelReason != "" {
		description += fmt.Sprintf("\nReason: %s", g.CancelReason)
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("🚫 Giveaway Canceled").
		SetDescription(description).
		SetColor(embedColor).
		Build()

	if err := n.gateway.EditPublic(ctx, channelID, messageID, discord.MessageUpdate{
		Embeds:     &[]discord.Embed{embed},
		Components: &[]discord.ContainerComponent{},
	}); err != nil {
		slog.Warn("Failed to update canceled giveaway post",
			slog.Int64("giveaway_id", g.ID),
			slog.Any("error", err))
	}
}

// SendProof DMs the fairness proof to the given operators: the commitment,
// the revealed seed and the recomputation formula. Fire-and-forget; failures
// are logged and never block or reverse the announced state.
func (n *Notifier) SendProof(ctx context.Context, g *models.Giveaway, recipients []snowflake.ID) {
	if len(recipients) == 0 {
		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("🔍 Draw Proof").
		SetDescription(fmt.Sprintf(
			"Giveaway #%d — **%s**\n\nCommitment: `%s`\nSeed: `%s`\n\nVerification:\n`%s`",
			g.ID, g.Prize, g.SeedHash, RevealedSeed(g), VerificationFormula(g.ID),
		)).
		SetColor(embedColor).
		Build()

	for _, recipient := range recipients {
		if err := n.gateway.SendPrivate(ctx, recipient, discord.MessageCreate{
			Embeds: []discord.Embed{embed},
		}); err != nil {
			slog.Warn("Failed to deliver draw proof",
				slog.Int64("giveaway_id", g.ID),
				slog.String("recipient", recipient.String()),
				slog.Any("error", err))
		}
	}
}

func (n *Notifier) giveawayEmbed(g *models.Giveaway, participants int) discord.Embed {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Prize: **%s**\n", g.Prize)
	if g.Sponsor != "" {
		fmt.Fprintf(&sb, "Sponsor: **%s**\n", g.Sponsor)
	}
	fmt.Fprintf(&sb, "Winners: **%d**\n", g.WinnerCount)
	fmt.Fprintf(&sb, "Closes: <t:%d:R>\n", g.CloseTime.Unix())
	fmt.Fprintf(&sb, "Entries: **%s**\n\n", utils.FormatNumber(int64(participants)))
	fmt.Fprintf(&sb, "Press the button to enter. Fair-draw commitment: `%s`", utils.Shorten(g.SeedHash, 16))

	return discord.NewEmbedBuilder().
		SetTitle("🎉 Giveaway").
		SetDescription(sb.String()).
		SetColor(embedColor).
		SetFooterText(fmt.Sprintf("Giveaway #%d", g.ID)).
		Build()
}

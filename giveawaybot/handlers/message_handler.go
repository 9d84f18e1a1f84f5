package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	giveawaybot "github.com/disgoorg/giveaway-bot/giveawaybot"
	"github.com/disgoorg/giveaway-bot/giveawaybot/giveaway"
)

// MessageHandler feeds plain channel messages into the create-wizard. Only
// messages from an operator with a live wizard session in the same channel
// are consumed; everything else is ignored.
func MessageHandler(b *giveawaybot.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.MessageCreate) {
		if e.Message.Author.Bot {
			return
		}

		sessions := b.GiveawayManager.Sessions()
		session, ok := sessions.Get(e.Message.Author.ID)
		if !ok || session.ChannelID != e.ChannelID {
			return
		}

		prompt, complete, err := session.Apply(e.Message.Content)
		switch {
		case errors.Is(err, giveaway.ErrWizardAborted):
			sessions.End(e.Message.Author.ID)
			reply(e, "Giveaway setup canceled.")
			return
		case err != nil:
			reply(e, fmt.Sprintf("❌ %v", err))
			return
		case !complete:
			reply(e, prompt)
			return
		}

		sessions.End(e.Message.Author.ID)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		g, err := b.GiveawayManager.CreateGiveaway(ctx, giveaway.CreateOptions{
			Prize:       session.Prize,
			Sponsor:     session.Sponsor,
			WinnerCount: session.WinnerCount,
			Duration:    session.Duration,
			CreatorID:   e.Message.Author.ID,
			ChannelID:   session.ChannelID,
		})
		if err != nil {
			slog.Error("Wizard giveaway creation failed",
				slog.String("operator", e.Message.Author.ID.String()),
				slog.Any("error", err))
			reply(e, fmt.Sprintf("❌ Could not open the giveaway: %v", err))
			return
		}

		reply(e, fmt.Sprintf("🎉 Giveaway #%d is open! Commitment `%s` is published on the post.", g.ID, g.SeedHash))
	})
}

func reply(e *events.MessageCreate, content string) {
	_, err := e.Client().Rest().CreateMessage(e.ChannelID, discord.NewMessageCreateBuilder().
		SetContent(content).
		SetMessageReferenceByID(e.MessageID).
		Build())
	if err != nil {
		slog.Error("Failed to reply in wizard channel",
			slog.String("channel_id", e.ChannelID.String()),
			slog.Any("error", err))
	}
}

package giveaway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// Gateway is the messaging side of the engine. The scheduler and the command
// handlers only talk to Discord through it, which keeps the lifecycle logic
// testable against a fake.
type Gateway interface {
	// SendPublic posts to a channel and returns the created message id.
	SendPublic(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (snowflake.ID, error)
	// EditPublic updates an existing post. Best-effort for callers; the
	// persisted state stays authoritative when an edit fails.
	EditPublic(ctx context.Context, channelID snowflake.ID, messageID snowflake.ID, update discord.MessageUpdate) error
	// SendPrivate DMs a user.
	SendPrivate(ctx context.Context, userID snowflake.ID, message discord.MessageCreate) error
	// IsMember reports whether the user belongs to the guild.
	IsMember(ctx context.Context, guildID snowflake.ID, userID snowflake.ID) (bool, error)
}

type discordGateway struct {
	client bot.Client
}

// NewDiscordGateway wraps a disgo client in the Gateway interface.
func NewDiscordGateway(client bot.Client) Gateway {
	return &discordGateway{client: client}
}

func (g *discordGateway) SendPublic(_ context.Context, channelID snowflake.ID, message discord.MessageCreate) (snowflake.ID, error) {
	msg, err := g.client.Rest().CreateMessage(channelID, message)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func (g *discordGateway) EditPublic(_ context.Context, channelID snowflake.ID, messageID snowflake.ID, update discord.MessageUpdate) error {
	if _, err := g.client.Rest().UpdateMessage(channelID, messageID, update); err != nil {
		return fmt.Errorf("failed to edit message %s: %w", messageID, err)
	}
	return nil
}

func (g *discordGateway) SendPrivate(_ context.Context, userID snowflake.ID, message discord.MessageCreate) error {
	dmChannel, err := g.client.Rest().CreateDMChannel(userID)
	if err != nil {
		return fmt.Errorf("failed to create DM channel with %s: %w", userID, err)
	}

	if _, err = g.client.Rest().CreateMessage(dmChannel.ID(), message); err != nil {
		return fmt.Errorf("failed to DM %s: %w", userID, err)
	}
	return nil
}

func (g *discordGateway) IsMember(_ context.Context, guildID snowflake.ID, userID snowflake.ID) (bool, error) {
	member, err := g.client.Rest().GetMember(guildID, userID)
	if err != nil {
		var restErr rest.Error
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership of %s: %w", userID, err)
	}
	return member != nil, nil
}

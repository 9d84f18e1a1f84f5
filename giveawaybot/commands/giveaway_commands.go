package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/disgoorg/snowflake/v2"

	giveawaybot "github.com/disgoorg/giveaway-bot/giveawaybot"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/models"
	"github.com/disgoorg/giveaway-bot/giveawaybot/handlers"
	"github.com/disgoorg/giveaway-bot/giveawaybot/database/repositories"
	"github.com/disgoorg/giveaway-bot/giveawaybot/giveaway"
	"github.com/disgoorg/giveaway-bot/giveawaybot/utils"
)

const giveawaysPerPage = 5

var GiveawayCommand = discord.SlashCommandCreate{
	Name:        "giveaway",
	Description: "Giveaway related commands",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "create",
			Description: "Open a new giveaway (no options starts the step-by-step wizard)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "prize",
					Description: "What is being given away",
				},
				discord.ApplicationCommandOptionInt{
					Name:        "winners",
					Description: "How many winners to draw",
					MinValue:    intPtr(1),
					MaxValue:    intPtr(100),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "duration",
					Description: "How long the giveaway runs, in minutes",
					MinValue:    intPtr(1),
					MaxValue:    intPtr(20160),
				},
				discord.ApplicationCommandOptionString{
					Name:        "sponsor",
					Description: "Who sponsors the prize",
				},
				discord.ApplicationCommandOptionChannel{
					Name:        "channel",
					Description: "Channel to post in (defaults to the configured broadcast channel)",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "cancel",
			Description: "Cancel an open giveaway",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "id",
					Description: "The giveaway id (e.g. 42)",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Why the giveaway is canceled",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List open giveaways",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "info",
			Description: "Inspect a giveaway by id or prize name",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "id",
					Description: "The giveaway id",
				},
				discord.ApplicationCommandOptionString{
					Name:        "prize",
					Description: "Search open giveaways by prize name",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "proof",
			Description: "Show the fair-draw proof (operator only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "id",
					Description: "The giveaway id",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "reannounce",
			Description: "Re-publish the result of an ended giveaway (operator only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "id",
					Description: "The giveaway id",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "setchannel",
			Description: "Set the default broadcast channel (operator only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionChannel{
					Name:        "channel",
					Description: "The channel giveaways are posted to by default",
					Required:    true,
				},
			},
		},
	},
}

type GiveawayHandler struct {
	bot *giveawaybot.Bot
}

func NewGiveawayHandler(b *giveawaybot.Bot) *GiveawayHandler {
	return &GiveawayHandler{bot: b}
}

func (h *GiveawayHandler) Register(r handler.Router) {
	r.Route("/giveaway", func(r handler.Router) {
		r.Command("/create", handlers.WrapWithLogging("giveaway-create", h.HandleCreate))
		r.Command("/cancel", handlers.WrapWithLogging("giveaway-cancel", h.HandleCancel))
		r.Command("/list", handlers.WrapWithLogging("giveaway-list", h.HandleList))
		r.Command("/info", handlers.WrapWithLogging("giveaway-info", h.HandleInfo))
		r.Command("/proof", handlers.WrapWithLogging("giveaway-proof", h.HandleProof))
		r.Command("/reannounce", handlers.WrapWithLogging("giveaway-reannounce", h.HandleReannounce))
		r.Command("/setchannel", handlers.WrapWithLogging("giveaway-setchannel", h.HandleSetChannel))
	})

	r.Component("/giveaway/join/{id}", handlers.WrapComponentWithLogging("giveaway-join", h.HandleJoin))
}

func (h *GiveawayHandler) HandleCreate(event *handler.CommandEvent) error {
	data := event.SlashCommandInteractionData()

	prize, hasPrize := data.OptString("prize")
	if !hasPrize {
		// No options: run the message-driven wizard in this channel.
		session := h.bot.GiveawayManager.Sessions().Begin(event.User().ID, eventGuildID(event), event.ChannelID())
		return event.CreateMessage(discord.MessageCreate{
			Content: session.Prompt(),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	winners, hasWinners := data.OptInt("winners")
	minutes, hasDuration := data.OptInt("duration")
	if !hasWinners || !hasDuration {
		return errorMessage(event, "`winners` and `duration` are required unless you start the wizard with no options")
	}

	var channelID snowflake.ID
	if channel, ok := data.OptChannel("channel"); ok {
		channelID = channel.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, err := h.bot.GiveawayManager.CreateGiveaway(ctx, giveaway.CreateOptions{
		Prize:       prize,
		Sponsor:     data.String("sponsor"),
		WinnerCount: winners,
		Duration:    time.Duration(minutes) * time.Minute,
		CreatorID:   event.User().ID,
		ChannelID:   channelID,
	})
	if err != nil {
		return errorMessage(event, fmt.Sprintf("Could not open the giveaway: %v", err))
	}

	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("🎉 Giveaway #%d for **%s** is open, closing %s. Commitment `%s` is on the post.",
			g.ID, g.Prize, utils.DiscordRelativeTime(g.CloseTime), utils.Shorten(g.SeedHash, 16)),
		Flags: discord.MessageFlagEphemeral,
	})
}

func (h *GiveawayHandler) HandleCancel(event *handler.CommandEvent) error {
	data := event.SlashCommandInteractionData()

	id, err := giveaway.ParseGiveawayID(data.String("id"))
	if err != nil {
		return errorMessage(event, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reason := data.String("reason")
	if err := h.bot.GiveawayManager.Lifecycle().Cancel(ctx, id, reason); err != nil {
		if errors.Is(err, repositories.ErrAlreadyEnded) {
			return errorMessage(event, fmt.Sprintf("Giveaway #%d already ended; nothing was canceled.", id))
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return errorMessage(event, fmt.Sprintf("Giveaway #%d does not exist.", id))
		}
		return errorMessage(event, fmt.Sprintf("Failed to cancel: %v", err))
	}

	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("🚫 Giveaway #%d canceled.", id),
		Flags:   discord.MessageFlagEphemeral,
	})
}

func (h *GiveawayHandler) HandleList(event *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active, err := h.bot.GiveawayRepository.GetActive(ctx)
	if err != nil {
		return errorMessage(event, "Failed to load giveaways")
	}
	if len(active) == 0 {
		return event.CreateMessage(discord.MessageCreate{
			Content: "No open giveaways right now.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	totalPages := int(math.Ceil(float64(len(active)) / float64(giveawaysPerPage)))

	return h.bot.Paginator.Create(event.Respond, paginator.Pages{
		ID:      event.ID().String(),
		Creator: event.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * giveawaysPerPage
			end := min(start+giveawaysPerPage, len(active))

			var sb strings.Builder
			for _, g := range active[start:end] {
				fmt.Fprintf(&sb, "`#%d` **%s** — %d winner(s), closes %s\n",
					g.ID, g.Prize, g.WinnerCount, utils.DiscordRelativeTime(g.CloseTime))
			}

			embed.
				SetTitle("🎉 Open Giveaways").
				SetDescription(sb.String()).
				SetColor(0x2b2d31).
				SetFooter(fmt.Sprintf("Page %d/%d • Total: %d", page+1, totalPages, len(active)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func (h *GiveawayHandler) HandleInfo(event *handler.CommandEvent) error {
	data := event.SlashCommandInteractionData()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var g *models.Giveaway
	if rawID, ok := data.OptString("id"); ok {
		id, err := giveaway.ParseGiveawayID(rawID)
		if err != nil {
			return errorMessage(event, err.Error())
		}
		g, err = h.bot.GiveawayRepository.GetByID(ctx, id)
		if err != nil {
			return errorMessage(event, fmt.Sprintf("Giveaway #%d does not exist.", id))
		}
	} else if prize, ok := data.OptString("prize"); ok {
		matches, err := h.bot.GiveawayRepository.SearchActiveByPrize(ctx, prize)
		if err != nil || len(matches) == 0 {
			return errorMessage(event, fmt.Sprintf("No open giveaway matches %q.", prize))
		}
		g = matches[0]
	} else {
		return errorMessage(event, "Give either an `id` or a `prize` to look up.")
	}

	count, err := h.bot.GiveawayRepository.CountParticipants(ctx, g.ID)
	if err != nil {
		return errorMessage(event, "Failed to load participants")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Prize: **%s**\n", g.Prize)
	if g.Sponsor != "" {
		fmt.Fprintf(&sb, "Sponsor: **%s**\n", g.Sponsor)
	}
	fmt.Fprintf(&sb, "State: **%s**\n", g.State())
	fmt.Fprintf(&sb, "Winners requested: **%d**\n", g.WinnerCount)
	fmt.Fprintf(&sb, "Entries: **%s**\n", utils.FormatNumber(int64(count)))
	fmt.Fprintf(&sb, "Closes: %s\n", utils.DiscordRelativeTime(g.CloseTime))
	fmt.Fprintf(&sb, "Commitment: `%s`\n", g.SeedHash)
	if g.Canceled && g.CancelReason != "" {
		fmt.Fprintf(&sb, "Cancel reason: %s\n", g.CancelReason)
	}

	if g.State() == models.GiveawayStateAnnounced {
		winners, err := h.bot.GiveawayRepository.GetWinners(ctx, g.ID)
		if err == nil && len(winners) > 0 {
			sb.WriteString("\nWinners:\n")
			for _, w := range winners {
				fmt.Fprintf(&sb, "`#%d` <@%s>\n", w.Position, w.UserID)
			}
		}
	}

	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{discord.NewEmbedBuilder().
			SetTitle(fmt.Sprintf("Giveaway #%d", g.ID)).
			SetDescription(sb.String()).
			SetColor(0x2b2d31).
			Build()},
		Flags: discord.MessageFlagEphemeral,
	})
}

func (h *GiveawayHandler) HandleProof(event *handler.CommandEvent) error {
	if !h.isOperator(event) {
		return errorMessage(event, "Only operators can view draw proofs.")
	}

	data := event.SlashCommandInteractionData()
	id, err := giveaway.ParseGiveawayID(data.String("id"))
	if err != nil {
		return errorMessage(event, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, err := h.bot.GiveawayRepository.GetByID(ctx, id)
	if err != nil {
		return errorMessage(event, fmt.Sprintf("Giveaway #%d does not exist.", id))
	}

	// The commitment is always shown; the seed only once the giveaway is
	// terminal and not canceled.
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{discord.NewEmbedBuilder().
			SetTitle(fmt.Sprintf("🔍 Draw Proof — Giveaway #%d", g.ID)).
			SetDescription(fmt.Sprintf(
				"Commitment: `%s`\nSeed: `%s`\n\nVerification:\n`%s`",
				g.SeedHash, giveaway.RevealedSeed(g), giveaway.VerificationFormula(g.ID),
			)).
			SetColor(0x2b2d31).
			Build()},
		Flags: discord.MessageFlagEphemeral,
	})
}

func (h *GiveawayHandler) HandleReannounce(event *handler.CommandEvent) error {
	if !h.isOperator(event) {
		return errorMessage(event, "Only operators can re-announce results.")
	}

	data := event.SlashCommandInteractionData()
	id, err := giveaway.ParseGiveawayID(data.String("id"))
	if err != nil {
		return errorMessage(event, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.bot.GiveawayManager.Reannounce(ctx, id); err != nil {
		switch {
		case errors.Is(err, giveaway.ErrNotClosed):
			return errorMessage(event, fmt.Sprintf("Giveaway #%d has not been drawn yet; nothing to announce.", id))
		case errors.Is(err, giveaway.ErrCanceled):
			return errorMessage(event, fmt.Sprintf("Giveaway #%d was canceled; there is no result to announce.", id))
		case errors.Is(err, repositories.ErrNotFound):
			return errorMessage(event, fmt.Sprintf("Giveaway #%d does not exist.", id))
		default:
			return errorMessage(event, fmt.Sprintf("Re-announce failed: %v", err))
		}
	}

	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("📣 Result of giveaway #%d re-announced.", id),
		Flags:   discord.MessageFlagEphemeral,
	})
}

func (h *GiveawayHandler) HandleSetChannel(event *handler.CommandEvent) error {
	if !h.isOperator(event) {
		return errorMessage(event, "Only operators can change the broadcast channel.")
	}

	data := event.SlashCommandInteractionData()
	channel := data.Channel("channel")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.bot.GiveawayRepository.SetSetting(ctx, models.SettingBroadcastChannel, channel.ID.String()); err != nil {
		return errorMessage(event, "Failed to store the broadcast channel")
	}

	return event.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("✅ Giveaways will be posted to <#%s> by default.", channel.ID),
		Flags:   discord.MessageFlagEphemeral,
	})
}

func (h *GiveawayHandler) HandleJoin(event *handler.ComponentEvent) error {
	id, err := giveaway.ParseGiveawayID(event.Vars["id"])
	if err != nil {
		return errorComponentMessage(event, "This join button is broken; tell an operator.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := h.bot.GiveawayManager.Join(ctx, id, eventComponentGuildID(event), event.User().ID, event.User().Username)
	if err != nil {
		return errorComponentMessage(event, "Something went wrong, try again.")
	}

	var content string
	switch result {
	case JoinOK:
		content = "🎉 You're in! Good luck."
	case JoinAlreadyJoined:
		content = "You already joined this giveaway."
	case JoinClosed:
		content = "This giveaway is closed."
	case JoinNotMember:
		content = "Only verified members of this server can join."
	}

	return event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

// Aliases keep the switch above readable.
const (
	JoinOK            = giveaway.JoinOK
	JoinAlreadyJoined = giveaway.JoinAlreadyJoined
	JoinClosed        = giveaway.JoinClosed
	JoinNotMember     = giveaway.JoinNotMember
)

func (h *GiveawayHandler) isOperator(event *handler.CommandEvent) bool {
	for _, id := range h.bot.Cfg.Giveaway.Operators {
		if id == event.User().ID {
			return true
		}
	}
	if member := event.Member(); member != nil {
		return member.Permissions.Has(discord.PermissionAdministrator)
	}
	return false
}

func errorMessage(event *handler.CommandEvent, content string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: "❌ " + content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func errorComponentMessage(event *handler.ComponentEvent, content string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: "❌ " + content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func eventGuildID(event *handler.CommandEvent) snowflake.ID {
	if id := event.GuildID(); id != nil {
		return *id
	}
	return 0
}

func eventComponentGuildID(event *handler.ComponentEvent) snowflake.ID {
	if id := event.GuildID(); id != nil {
		return *id
	}
	return 0
}

func intPtr(i int) *int {
	return &i
}

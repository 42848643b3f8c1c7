package discord

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zulandar/masquerade/internal/models"
	"github.com/zulandar/masquerade/internal/persona"
)

// commandTimeout bounds the work behind a single slash command.
const commandTimeout = 30 * time.Second

// ThreadCreator creates and removes persona roleplay threads.
type ThreadCreator interface {
	Create(ctx context.Context, req persona.CreateRequest) (string, error)
}

// StatusProvider reports a snapshot of bot health.
type StatusProvider interface {
	Status(ctx context.Context) persona.Status
}

// TimerSetter starts a castle blood timer for a channel.
type TimerSetter interface {
	SetTimer(ctx context.Context, channelID string, castleLevel int) (*models.BloodTimer, error)
}

// CommandDeps holds the persona core the slash commands act on.
type CommandDeps struct {
	Creator ThreadCreator
	Status  StatusProvider
	Timers  TimerSetter
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	minLen := persona.MinNameLength
	personaOptions := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "name",
			Description: "Name of the persona",
			Required:    true,
			MinLength:   &minLen,
			MaxLength:   persona.MaxNameLength,
		},
		{
			Type:        discordgo.ApplicationCommandOptionAttachment,
			Name:        "avatar",
			Description: "Avatar image for the persona",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "persona",
			Description: "Roleplay details (appearance, personality, scenario)",
			Required:    false,
		},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "persona_private",
			Description: "Create a private thread with an AI persona",
			Options:     personaOptions,
		},
		{
			Name:        "persona_public",
			Description: "Create a public thread with an AI persona",
			Options:     personaOptions,
		},
		{
			Name:        "persona_status",
			Description: "Show bot health and active persona count",
		},
		{
			Name:        "persona_help",
			Description: "How to use the persona bot",
		},
		{
			Name:        "blood-timer",
			Description: "Start a castle blood reminder timer for this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "castle_level",
					Description: "Castle heart level (1-5, default 5)",
					Required:    false,
				},
			},
		},
	}
}

func (a *Adapter) registerCommands() error {
	a.mu.Lock()
	appID := a.appID
	guildID := a.guildID
	a.mu.Unlock()

	for _, cmd := range commandDefinitions() {
		if _, err := a.sess.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return err
		}
	}
	log.Printf("discord: registered %d application commands", len(commandDefinitions()))
	return nil
}

func (a *Adapter) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	a.mu.Lock()
	deps := a.deps
	a.mu.Unlock()
	if deps == nil {
		return
	}

	data := i.ApplicationCommandData()
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch data.Name {
	case "persona_private":
		a.handleCreate(ctx, i, deps, true)
	case "persona_public":
		a.handleCreate(ctx, i, deps, false)
	case "persona_status":
		a.handleStatus(ctx, i, deps)
	case "persona_help":
		a.handleHelp(i)
	case "blood-timer":
		a.handleBloodTimer(ctx, i, deps)
	}
}

func (a *Adapter) handleCreate(ctx context.Context, i *discordgo.InteractionCreate, deps *CommandDeps, private bool) {
	if err := a.deferEphemeral(i); err != nil {
		log.Printf("discord: defer interaction: %v", err)
		return
	}

	data := i.ApplicationCommandData()
	req := persona.CreateRequest{
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		UserID:    interactionUserID(i),
		Private:   private,
	}

	for _, opt := range data.Options {
		switch opt.Name {
		case "name":
			req.Name = opt.StringValue()
		case "persona":
			req.Persona = opt.StringValue()
		case "avatar":
			attID, _ := opt.Value.(string)
			if data.Resolved == nil {
				break
			}
			if att, ok := data.Resolved.Attachments[attID]; ok {
				req.AvatarURL = att.URL
				req.AvatarContentType = att.ContentType
			}
		}
	}

	threadID, err := deps.Creator.Create(ctx, req)
	if err != nil {
		log.Printf("discord: create persona for user %s: %v", req.UserID, err)
		a.followupText(i, userFacingError(err))
		return
	}

	a.followupText(i, "✅ Your persona thread is ready: <#"+threadID+">")

	// Welcome embed goes into the thread itself so the roleplay has an
	// opening frame. Best effort.
	if _, err := a.sess.ChannelMessageSendEmbed(threadID, welcomeEmbed(req.Name, req.Persona, req.AvatarURL)); err != nil {
		log.Printf("discord: welcome embed for thread %s: %v", threadID, err)
	}
}

func (a *Adapter) handleStatus(ctx context.Context, i *discordgo.InteractionCreate, deps *CommandDeps) {
	if err := a.deferEphemeral(i); err != nil {
		log.Printf("discord: defer interaction: %v", err)
		return
	}
	st := deps.Status.Status(ctx)
	a.followupEmbed(i, statusEmbed(st))
}

func (a *Adapter) handleHelp(i *discordgo.InteractionCreate) {
	if err := a.deferEphemeral(i); err != nil {
		log.Printf("discord: defer interaction: %v", err)
		return
	}
	a.followupEmbed(i, helpEmbed())
}

func (a *Adapter) handleBloodTimer(ctx context.Context, i *discordgo.InteractionCreate, deps *CommandDeps) {
	if err := a.deferEphemeral(i); err != nil {
		log.Printf("discord: defer interaction: %v", err)
		return
	}
	if deps.Timers == nil {
		a.followupText(i, "❌ Blood timers are not enabled.")
		return
	}

	data := i.ApplicationCommandData()
	level := 5 // a full top-level castle unless told otherwise
	for _, opt := range data.Options {
		if opt.Name == "castle_level" {
			level = int(opt.IntValue())
		}
	}

	timer, err := deps.Timers.SetTimer(ctx, i.ChannelID, level)
	if err != nil {
		log.Printf("discord: set blood timer: %v", err)
		a.followupText(i, userFacingError(err))
		return
	}
	a.followupEmbed(i, timerEmbed(timer))
}

func (a *Adapter) deferEphemeral(i *discordgo.InteractionCreate) error {
	return a.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func (a *Adapter) followupText(i *discordgo.InteractionCreate, content string) {
	if _, err := a.sess.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Printf("discord: followup message: %v", err)
	}
}

func (a *Adapter) followupEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if _, err := a.sess.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Printf("discord: followup embed: %v", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// userFacingError maps persona errors to a message safe to show the user.
// Validation and rate limit errors carry their detail after the sentinel
// prefix; everything else gets a generic message.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, persona.ErrInvalidParameters), errors.Is(err, persona.ErrRateLimited):
		return "❌ " + errorDetail(err)
	case errors.Is(err, persona.ErrServiceUnavailable):
		return "❌ The persona service is unavailable right now. Please try again later."
	default:
		return "❌ Something went wrong. Please try again."
	}
}

func errorDetail(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

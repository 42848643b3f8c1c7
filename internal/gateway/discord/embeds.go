package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/zulandar/masquerade/internal/models"
	"github.com/zulandar/masquerade/internal/persona"
)

// Embed colors. The bot keeps a gothic palette.
const (
	colorBlood    = 0x8B0000 // dark red
	colorMidnight = 0x2C2F33 // near black
	colorHealthy  = 0x2E8B57 // sea green
	colorWarning  = 0xB8860B // dark goldenrod
)

func welcomeEmbed(name, personaText, avatarURL string) *discordgo.MessageEmbed {
	if personaText == "" {
		personaText = "A mysterious figure. Speak, and discover who they are."
	}
	embed := &discordgo.MessageEmbed{
		Title:       "🩸 " + name + " awakens",
		Description: personaText,
		Color:       colorBlood,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Every message in this thread continues the roleplay.",
		},
	}
	if avatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatarURL}
	}
	return embed
}

func statusEmbed(st persona.Status) *discordgo.MessageEmbed {
	color := colorHealthy
	if !st.AIAvailable || !st.DBAvailable {
		color = colorWarning
	}
	return &discordgo.MessageEmbed{
		Title: "🦇 Bot Status",
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Uptime", Value: st.Uptime, Inline: true},
			{Name: "AI Service", Value: availabilityLabel(st.AIAvailable), Inline: true},
			{Name: "Database", Value: availabilityLabel(st.DBAvailable), Inline: true},
			{Name: "Active Personas", Value: fmt.Sprintf("%d", st.ActiveSessions), Inline: true},
		},
	}
}

func availabilityLabel(up bool) string {
	if up {
		return "✅ Online"
	}
	return "❌ Offline"
}

func helpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🌙 Persona Bot",
		Description: "Summon an AI persona into its own thread and roleplay " +
			"with it. The persona remembers the recent conversation and stays " +
			"in character.",
		Color: colorMidnight,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "/persona_private",
				Value: "Create a **private** thread with a persona. Requires a " +
					"name and an avatar image; roleplay details are optional.",
			},
			{
				Name:  "/persona_public",
				Value: "Same as above, but anyone in the channel can join in.",
			},
			{
				Name:  "/persona_status",
				Value: "Check whether the bot's AI and database are healthy.",
			},
			{
				Name:  "/blood-timer",
				Value: "Start a castle blood reminder timer for this channel.",
			},
			{
				Name: "Limits",
				Value: fmt.Sprintf("Up to %d active personas per person, one "+
					"new persona every %d minutes. Deleting the thread deletes "+
					"the persona.", 3, 5),
			},
		},
	}
}

func timerEmbed(t *models.BloodTimer) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("Level %d castle heart timer started. Reminders will "+
		"post here as the blood thins.", t.CastleLevel)
	if endsAt, err := t.EndsAtTime(); err == nil {
		desc = fmt.Sprintf("Level %d castle heart runs dry <t:%d:R> "+
			"(<t:%d:F>). Reminders will post here as the blood thins.",
			t.CastleLevel, endsAt.Unix(), endsAt.Unix())
	}
	return &discordgo.MessageEmbed{
		Title:       "🩸 Castle Blood Timer",
		Description: desc,
		Color:       colorBlood,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Feed the heart before it stops.",
		},
	}
}

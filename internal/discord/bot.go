// Package discord exposes the submission gateway as a guild slash command.
package discord

import (
	"context"
	"fmt"
	"strings"

	apperrors "papercrumpler/internal/errors"
	"papercrumpler/internal/models"
	"papercrumpler/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const textOption = "text"

// Submitter queues a submission. Implemented by *service.Gateway.
type Submitter interface {
	Submit(ctx context.Context, text, sender string) (*service.Ack, error)
}

type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Bot registers the print command and forwards invocations to a Submitter.
type Bot struct {
	cfg       models.DiscordConfig
	gateway   Submitter
	logger    *logrus.Logger
	errLogger *apperrors.Logger
}

func NewBot(cfg models.DiscordConfig, gateway Submitter, logger *logrus.Logger) *Bot {
	return &Bot{
		cfg:       cfg,
		gateway:   gateway,
		logger:    logger,
		errLogger: apperrors.WrapLogger(logger),
	}
}

// Command is the slash command definition.
func (b *Bot) Command() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        b.cfg.CommandName,
		Description: "Print a message on the thermal printer",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        textOption,
				Description: "What to print",
				Required:    true,
			},
		},
	}
}

// Run connects, registers the command and serves interactions until ctx
// ends. The command is removed again on the way out.
func (b *Bot) Run(ctx context.Context) error {
	if strings.TrimSpace(b.cfg.BotToken) == "" {
		return apperrors.NewMissingConfigError("discord.bot_token")
	}
	// An empty guild would register a global command.
	if strings.TrimSpace(b.cfg.GuildID) == "" {
		return apperrors.NewMissingConfigError("discord.guild_id")
	}

	session, err := discordgo.New("Bot " + b.cfg.BotToken)
	if err != nil {
		return apperrors.NewConfigError("discord.bot_token", err.Error())
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.WithField("user", r.User.Username).Info("Connected to Discord")
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(ctx, s, i.Interaction)
	})

	if err := session.Open(); err != nil {
		return apperrors.NewConnectivityError("discord gateway", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			b.logger.WithError(err).Warn("Failed to close Discord session")
		}
	}()

	cmd, err := session.ApplicationCommandCreate(session.State.User.ID, b.cfg.GuildID, b.Command())
	if err != nil {
		return fmt.Errorf("failed to register /%s: %w", b.cfg.CommandName, err)
	}
	b.logger.WithFields(logrus.Fields{
		"command":  cmd.Name,
		"guild_id": b.cfg.GuildID,
	}).Info("Registered slash command")

	<-ctx.Done()

	if err := session.ApplicationCommandDelete(session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
		b.logger.WithError(err).Warn("Failed to remove slash command")
	}
	return nil
}

func (b *Bot) handleInteraction(ctx context.Context, r responder, in *discordgo.Interaction) {
	if in.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := in.ApplicationCommandData()
	if data.Name != b.cfg.CommandName {
		return
	}

	var text string
	for _, opt := range data.Options {
		if opt.Name == textOption && opt.Type == discordgo.ApplicationCommandOptionString {
			text = opt.StringValue()
		}
	}

	ack, err := b.gateway.Submit(ctx, text, senderFromInteraction(in))
	if err != nil {
		b.errLogger.LogWarn(err, "Rejected print command", logrus.Fields{"interaction_id": in.ID})
		b.respond(r, in, apperrors.GetUserMessage(err), true)
		return
	}
	b.respond(r, in, ack.String(), false)
}

func (b *Bot) respond(r responder, in *discordgo.Interaction, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.InteractionRespond(in, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.WithError(err).WithField("interaction_id", in.ID).Error("Failed to answer interaction")
	}
}

// senderFromInteraction prefers the guild nickname, then the username.
// An empty result lets the gateway apply its default handle.
func senderFromInteraction(in *discordgo.Interaction) string {
	if in.Member != nil {
		if in.Member.Nick != "" {
			return in.Member.Nick
		}
		if in.Member.User != nil {
			return in.Member.User.Username
		}
	}
	if in.User != nil {
		return in.User.Username
	}
	return ""
}

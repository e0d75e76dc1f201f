package music

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"jukebox/bot/common"
	"jukebox/infrastructure/observability"
	"jukebox/models"
	"jukebox/player"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const commandTimeout = 15 * time.Second

func (f *Feature) handlePlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user := common.InteractionUser(i)
	vs, err := s.State.VoiceState(i.GuildID, user.ID)
	if err != nil || vs.ChannelID == "" {
		common.RespondWithError(s, i, "Join a voice channel first.")
		return
	}
	if d, ok := f.registry.Get(i.GuildID); ok && d.VoiceChannelID() != vs.ChannelID {
		common.RespondWithError(s, i, fmt.Sprintf("I'm already playing in <#%s>.", d.VoiceChannelID()))
		return
	}

	options := optionMap(i.ApplicationCommandData().Options)
	var query, source string
	if opt, ok := options["query"]; ok {
		query = opt.StringValue()
	}
	if opt, ok := options["source"]; ok {
		source = opt.StringValue()
	}

	if err := common.DeferResponse(s, i, false); err != nil {
		log.Errorf("Error deferring play response: %v", err)
		return
	}

	started := time.Now()
	resolution, err := f.resolver.Resolve(ctx, query, source, models.UserRef{ID: user.ID, Username: common.InteractionDisplayName(i)})
	f.recordSearch(source, err, time.Since(started))
	if err != nil {
		log.WithFields(log.Fields{
			"guildID": i.GuildID,
			"query":   query,
			"error":   err,
		}).Warn("Search failed")
		common.FollowUpWithError(s, i, errorMessage(err))
		return
	}

	d := f.registry.GetOrCreate(i.GuildID, vs.ChannelID, i.ChannelID)
	startsNow := d.Snapshot().Current == nil
	position, err := d.Enqueue(resolution.Tracks...)
	if player.IsTerminal(err) {
		d = f.registry.GetOrCreate(i.GuildID, vs.ChannelID, i.ChannelID)
		startsNow = true
		position, err = d.Enqueue(resolution.Tracks...)
	}
	if err != nil {
		common.FollowUpWithError(s, i, errorMessage(err))
		return
	}

	if err := d.Play(ctx); err != nil {
		log.WithFields(log.Fields{
			"guildID": i.GuildID,
			"error":   err,
		}).Error("Failed to start playback")
		common.FollowUpWithError(s, i, errorMessage(err))
		return
	}

	embed := BuildQueuedEmbed(resolution, position, startsNow)
	if _, err := common.FollowUpWithEmbed(s, i, embed, false); err != nil {
		log.Errorf("Error sending play follow-up: %v", err)
	}
}

func (f *Feature) handleSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.activePlayer(s, i)
	if !ok {
		return
	}
	snap := d.Snapshot()
	if snap.Current == nil {
		common.RespondWithError(s, i, errorMessage(player.ErrNothingPlaying))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := d.Skip(ctx); err != nil {
		common.RespondWithError(s, i, errorMessage(err))
		return
	}
	common.RespondWithSuccess(s, i, fmt.Sprintf("Skipped %s", common.FormatTrackLink(*snap.Current)), false)
}

func (f *Feature) handlePause(s *discordgo.Session, i *discordgo.InteractionCreate, paused bool) {
	d, ok := f.activePlayer(s, i)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := d.Pause(ctx, paused); err != nil {
		common.RespondWithError(s, i, errorMessage(err))
		return
	}
	if paused {
		common.RespondWithSuccess(s, i, "Paused.", false)
	} else {
		common.RespondWithSuccess(s, i, "Resumed.", false)
	}
}

func (f *Feature) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.activePlayer(s, i)
	if !ok {
		return
	}
	// Respond first: destroying posts its own notice to the text channel.
	common.RespondWithSuccess(s, i, "Stopped and left the voice channel.", false)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	d.Destroy(ctx, player.ReasonStopped)
}

func (f *Feature) handleLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.activePlayer(s, i)
	if !ok {
		return
	}

	var raw string
	if opt, ok := optionMap(i.ApplicationCommandData().Options)["mode"]; ok {
		raw = opt.StringValue()
	}
	mode, err := models.ParseLoopMode(raw)
	if err != nil {
		common.RespondWithError(s, i, "Loop mode must be off, track or queue.")
		return
	}
	if err := d.SetLoop(mode); err != nil {
		common.RespondWithError(s, i, errorMessage(err))
		return
	}
	common.RespondWithSuccess(s, i, fmt.Sprintf("Loop mode set to **%s**.", LoopLabel(mode)), false)
}

func (f *Feature) handleShuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.activePlayer(s, i)
	if !ok {
		return
	}
	if len(d.Snapshot().Queue) < 2 {
		common.RespondWithError(s, i, "Need at least two queued tracks to shuffle.")
		return
	}
	if err := d.Shuffle(); err != nil {
		common.RespondWithError(s, i, errorMessage(err))
		return
	}
	common.RespondWithSuccess(s, i, "Shuffled the queue.", false)
}

func (f *Feature) handleClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.activePlayer(s, i)
	if !ok {
		return
	}
	n, err := d.Clear()
	if err != nil {
		common.RespondWithError(s, i, errorMessage(err))
		return
	}
	common.RespondWithSuccess(s, i, fmt.Sprintf("Removed %d track(s) from the queue.", n), false)
}

func (f *Feature) handleQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.registry.Get(i.GuildID)
	if !ok {
		common.RespondWithError(s, i, "The queue is empty.")
		return
	}
	if err := common.RespondWithEmbed(s, i, BuildQueueEmbed(d.Snapshot()), false); err != nil {
		log.Errorf("Error responding to queue command: %v", err)
	}
}

func (f *Feature) handleNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.registry.Get(i.GuildID)
	if !ok {
		common.RespondWithError(s, i, errorMessage(player.ErrNothingPlaying))
		return
	}
	snap := d.Snapshot()
	if snap.Current == nil {
		common.RespondWithError(s, i, errorMessage(player.ErrNothingPlaying))
		return
	}

	embed := BuildNowPlayingEmbed(snap)
	if f.cards != nil {
		card, err := f.cards.Render(*snap.Current, snap.Position, snap.Paused)
		if err == nil {
			embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + CardFileName}
			err = common.RespondWithEmbedAndFile(s, i, embed, &discordgo.File{
				Name:        CardFileName,
				ContentType: "image/png",
				Reader:      bytes.NewReader(card),
			})
			if err != nil {
				log.Errorf("Error responding to nowplaying command: %v", err)
			}
			return
		}
		log.WithError(err).Warn("Failed to render now playing card")
	}

	if err := common.RespondWithEmbed(s, i, embed, false); err != nil {
		log.Errorf("Error responding to nowplaying command: %v", err)
	}
}

func (f *Feature) handleVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d, ok := f.activePlayer(s, i)
	if !ok {
		return
	}

	opt, ok := optionMap(i.ApplicationCommandData().Options)["level"]
	if !ok {
		common.RespondWithSuccess(s, i, fmt.Sprintf("Volume is **%d**.", d.Snapshot().Volume), true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	level := int(opt.IntValue())
	if err := d.SetVolume(ctx, level); err != nil {
		common.RespondWithError(s, i, errorMessage(err))
		return
	}
	common.RespondWithSuccess(s, i, fmt.Sprintf("Volume set to **%d**.", level), false)
}

// activePlayer returns the guild's live player if the caller shares its voice channel
func (f *Feature) activePlayer(s *discordgo.Session, i *discordgo.InteractionCreate) (*player.Dispatcher, bool) {
	d, ok := f.registry.Get(i.GuildID)
	if !ok {
		common.RespondWithError(s, i, errorMessage(player.ErrNothingPlaying))
		return nil, false
	}

	user := common.InteractionUser(i)
	vs, err := s.State.VoiceState(i.GuildID, user.ID)
	if err != nil || vs.ChannelID != d.VoiceChannelID() {
		common.RespondWithError(s, i, fmt.Sprintf("You need to be in <#%s> to control playback.", d.VoiceChannelID()))
		return nil, false
	}
	return d, true
}

func (f *Feature) recordSearch(source string, err error, took time.Duration) {
	if f.searches == nil {
		return
	}
	platform := source
	if platform == "" {
		platform = "default"
	}

	result := observability.SearchResultHit
	switch {
	case errors.Is(err, player.ErrNoMatches):
		result = observability.SearchResultNoMatch
	case err != nil:
		result = observability.SearchResultError
	}
	f.searches.RecordSearch(platform, result, took)
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// errorMessage turns a player error into something a listener can act on
func errorMessage(err error) string {
	var validation *player.ValidationError
	switch {
	case errors.As(err, &validation):
		return fmt.Sprintf("Invalid %s: %s.", validation.Field, validation.Message)
	case errors.Is(err, player.ErrNoMatches):
		return "No tracks matched your search."
	case errors.Is(err, player.ErrSearchFailed):
		return "The search failed. Try again later."
	case errors.Is(err, player.ErrNothingPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, player.ErrQueueEmpty):
		return "The queue is empty."
	case errors.Is(err, player.ErrNoConnection):
		return "Still connecting to voice. Try again in a moment."
	case errors.Is(err, player.ErrInitFailure), errors.Is(err, player.ErrDestroyed):
		return "Could not connect to the voice channel. Try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The audio server took too long to respond."
	default:
		return "Something went wrong. Please try again."
	}
}

package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"jukebox/events"
	"jukebox/models"
	"jukebox/node"

	log "github.com/sirupsen/logrus"
)

const (
	nodeCommandTimeout = 10 * time.Second
	leaveTimeout       = 5 * time.Second

	// A finished event this soon after start on a long track usually means the stream broke
	prematureEndWindow   = 5 * time.Second
	prematureEndMinTrack = 30 * time.Second

	MaxVolume = 1000
)

// State is the externally visible phase of a dispatcher
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StatePlaying      State = "playing"
	StatePaused       State = "paused"
	StateIdle         State = "idle"
	StateDestroyed    State = "destroyed"
)

// Options tunes dispatcher timing and limits
type Options struct {
	// ReadyTimeout bounds how long Play waits for the voice connection
	ReadyTimeout time.Duration
	// JoinTimeout bounds the node join itself
	JoinTimeout  time.Duration
	HistoryLimit int
	// DefaultVolume is applied after joining; zero leaves the node default
	DefaultVolume int
}

// DefaultOptions returns the stock timings
func DefaultOptions() Options {
	return Options{
		ReadyTimeout:  2 * time.Second,
		JoinTimeout:   10 * time.Second,
		HistoryLimit:  20,
		DefaultVolume: 100,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = def.ReadyTimeout
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = def.JoinTimeout
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = def.HistoryLimit
	}
	return o
}

type remover interface {
	remove(guildID string, d *Dispatcher)
}

// Dispatcher owns one guild's voice connection, queue and playback state.
// Every public method and node event handler runs under mu, so operations on
// a guild are applied one at a time. Anything that leaves the process
// (notifications, bus events, leaving voice) is collected while the lock is
// held and performed after it is released.
type Dispatcher struct {
	guildID   string
	sessionID string
	node      node.Node
	notifier  Notifier
	bus       events.Publisher
	registry  remover
	opts      Options

	mu             sync.Mutex
	voiceChannelID string
	textChannelID  string
	queue          []models.Track
	current        *models.Track
	previous       []models.Track
	loop           models.LoopMode
	playing        bool
	paused         bool
	hasPlayed      bool
	exists         bool
	conn           node.Connection
	volume         int
	startedAt      time.Time
	// position was posBase at posAt; a zero posAt means it is not advancing
	posBase        time.Duration
	posAt          time.Time
	tracksPlayed   int

	readyCh chan struct{}
	done    chan struct{}
}

func newDispatcher(guildID, sessionID, voiceChannelID, textChannelID string, n node.Node, notifier Notifier, bus events.Publisher, registry remover, opts Options) *Dispatcher {
	return &Dispatcher{
		guildID:        guildID,
		sessionID:      sessionID,
		node:           n,
		notifier:       notifier,
		bus:            bus,
		registry:       registry,
		opts:           opts.withDefaults(),
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		loop:           models.LoopNone,
		exists:         true,
		volume:         opts.DefaultVolume,
		readyCh:        make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// effects collects work to perform once the state lock has been released
type effects struct {
	textChannelID string
	notes         []Notification
	batch         *events.Batch
	teardown      DestroyReason
}

func (d *Dispatcher) newEffects() *effects {
	return &effects{
		textChannelID: d.textChannelID,
		batch:         events.NewBatch(d.bus),
	}
}

func (fx *effects) notify(n Notification) {
	fx.notes = append(fx.notes, n)
}

func (d *Dispatcher) apply(ctx context.Context, fx *effects) {
	// The caller's request may already be finished; teardown still has to happen
	ctx = context.WithoutCancel(ctx)

	if fx.teardown != "" {
		leaveCtx, cancel := context.WithTimeout(ctx, leaveTimeout)
		if err := d.node.Leave(leaveCtx, d.guildID); err != nil {
			log.WithFields(log.Fields{
				"guildID": d.guildID,
				"reason":  fx.teardown,
				"error":   err,
			}).Warn("Failed to leave voice channel during teardown")
		}
		cancel()
		if d.registry != nil {
			d.registry.remove(d.guildID, d)
		}
	}
	if d.notifier != nil {
		for _, n := range fx.notes {
			d.notifier.Notify(ctx, fx.textChannelID, n)
		}
	}
	fx.batch.Flush(ctx)
}

// connect joins the node in the background. Play waits on readyCh for it.
func (d *Dispatcher) connect() {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.JoinTimeout)
	defer cancel()

	d.mu.Lock()
	channelID := d.voiceChannelID
	d.mu.Unlock()

	conn, err := d.node.Join(ctx, d.guildID, channelID)

	d.mu.Lock()
	if !d.exists {
		d.mu.Unlock()
		if err == nil {
			// Torn down while joining
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), leaveTimeout)
			defer leaveCancel()
			if leaveErr := d.node.Leave(leaveCtx, d.guildID); leaveErr != nil {
				log.WithError(leaveErr).WithField("guildID", d.guildID).Warn("Failed to leave after late join")
			}
		}
		return
	}

	fx := d.newEffects()
	if err != nil {
		log.WithFields(log.Fields{
			"guildID":   d.guildID,
			"channelID": channelID,
			"error":     err,
		}).Error("Failed to join voice channel")
		d.destroyLocked(fx, ReasonInitFailure)
		d.mu.Unlock()
		d.apply(context.Background(), fx)
		return
	}

	conn.Subscribe(d.handleEvent)
	d.conn = conn
	close(d.readyCh)
	volume := d.volume
	d.mu.Unlock()

	log.WithFields(log.Fields{
		"guildID":   d.guildID,
		"channelID": channelID,
	}).Info("Player connected to voice")

	if volume > 0 {
		volCtx, volCancel := context.WithTimeout(context.Background(), nodeCommandTimeout)
		defer volCancel()
		if err := conn.SetVolume(volCtx, volume); err != nil {
			log.WithError(err).WithField("guildID", d.guildID).Warn("Failed to apply default volume")
		}
	}
}

// Enqueue appends tracks to the queue and returns the new queue length
func (d *Dispatcher) Enqueue(tracks ...models.Track) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return 0, ErrDestroyed
	}
	d.queue = append(d.queue, tracks...)
	return len(d.queue), nil
}

// Play starts the queue head if nothing is current. It waits up to
// ReadyTimeout for the voice connection and destroys the player if the
// connection does not arrive in time.
func (d *Dispatcher) Play(ctx context.Context) error {
	if err := d.awaitReady(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	fx := d.newEffects()
	err := d.playLocked(ctx, fx)
	d.mu.Unlock()

	d.apply(ctx, fx)
	return err
}

func (d *Dispatcher) awaitReady(ctx context.Context) error {
	d.mu.Lock()
	exists, connected := d.exists, d.conn != nil
	d.mu.Unlock()

	if !exists {
		return ErrDestroyed
	}
	if connected {
		return nil
	}

	timer := time.NewTimer(d.opts.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-d.readyCh:
		return nil
	case <-d.done:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		log.WithFields(log.Fields{
			"guildID": d.guildID,
			"timeout": d.opts.ReadyTimeout,
		}).Error("Timed out waiting for voice connection")
		d.Destroy(ctx, ReasonInitFailure)
		return ErrInitFailure
	}
}

// playLocked pops queue items until one is dispatched or the queue runs out
func (d *Dispatcher) playLocked(ctx context.Context, fx *effects) error {
	if !d.exists {
		return ErrDestroyed
	}
	if d.conn == nil {
		return ErrNoConnection
	}
	if d.current != nil {
		return nil
	}

	for {
		if len(d.queue) == 0 {
			d.destroyLocked(fx, ReasonQueueExhausted)
			return ErrQueueEmpty
		}

		track := d.queue[0]
		d.queue = d.queue[1:]

		if !track.Valid() {
			log.WithFields(log.Fields{
				"guildID": d.guildID,
				"track":   track.Info.Title,
			}).Warn("Skipping track with invalid payload")
			d.skipLocked(fx, track, models.OutcomeInvalid, ErrInvalidTrackPayload.Error())
			continue
		}

		d.current = &track
		cmdCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), nodeCommandTimeout)
		err := d.conn.PlayTrack(cmdCtx, track.Encoded)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{
				"guildID": d.guildID,
				"track":   track.Info.Title,
				"error":   err,
			}).Error("Failed to dispatch track to node")
			d.current = nil
			d.skipLocked(fx, track, models.OutcomeFailed, ErrPlaybackFailure.Error())
			if len(d.queue) == 0 {
				d.destroyLocked(fx, ReasonPlaybackFailure)
				return fmt.Errorf("%w: %v", ErrPlaybackFailure, err)
			}
			continue
		}

		d.playing = true
		d.paused = false
		d.hasPlayed = true
		d.startedAt = time.Time{}
		d.posBase = 0
		d.posAt = time.Time{}
		return nil
	}
}

// skipLocked records a track that will not be played to completion
func (d *Dispatcher) skipLocked(fx *effects, track models.Track, outcome models.PlaybackOutcome, reason string) {
	d.pushPreviousLocked(track)
	fx.notify(Notification{Kind: NotifyTrackSkipped, GuildID: d.guildID, Track: &track, Reason: reason})
	fx.batch.Publish(d.trackEndedLocked(track, outcome))
}

func (d *Dispatcher) trackEndedLocked(track models.Track, outcome models.PlaybackOutcome) events.TrackEndedEvent {
	return events.TrackEndedEvent{
		SessionID: d.sessionID,
		GuildID:   d.guildID,
		Track:     track,
		Outcome:   outcome,
		StartedAt: d.startedAt,
		EndedAt:   time.Now(),
	}
}

// pushPreviousLocked records a track most-recent-first, dropping older copies of it
func (d *Dispatcher) pushPreviousLocked(track models.Track) {
	kept := make([]models.Track, 0, len(d.previous)+1)
	kept = append(kept, track)
	for _, p := range d.previous {
		if !p.SameAs(track) {
			kept = append(kept, p)
		}
	}
	if len(kept) > d.opts.HistoryLimit {
		kept = kept[:d.opts.HistoryLimit]
	}
	d.previous = kept
}

func (d *Dispatcher) handleEvent(ev node.Event) {
	ctx := context.Background()

	d.mu.Lock()
	if !d.exists {
		d.mu.Unlock()
		return
	}
	fx := d.newEffects()

	switch e := ev.(type) {
	case node.TrackStartEvent:
		d.onStartLocked(e, fx)
	case node.TrackEndEvent:
		d.onEndLocked(ctx, e, fx)
	case node.TrackStuckEvent:
		d.onStuckLocked(ctx, e, fx)
	case node.TrackExceptionEvent:
		d.onErrorLocked(ctx, e, fx)
	case node.WebSocketClosedEvent:
		d.onClosedLocked(e, fx)
	case node.PlayerUpdateEvent:
		d.onPlayerUpdateLocked(e)
	default:
		log.WithField("guildID", d.guildID).Debugf("Ignoring node event %T", ev)
	}
	d.mu.Unlock()

	d.apply(ctx, fx)
}

// isCurrent reports whether an event refers to the track we think is playing.
// Events for anything else are leftovers from an earlier transition.
func (d *Dispatcher) isCurrent(encoded string) bool {
	return d.current != nil && d.current.Encoded == encoded
}

func (d *Dispatcher) onStartLocked(e node.TrackStartEvent, fx *effects) {
	if !d.isCurrent(e.Encoded) {
		log.WithField("guildID", d.guildID).Debug("Ignoring start event for a track that is not current")
		return
	}

	d.playing = true
	d.paused = false
	d.startedAt = time.Now()
	d.posBase = 0
	d.posAt = d.startedAt
	d.tracksPlayed++

	track := *d.current
	fx.notify(Notification{Kind: NotifyNowPlaying, GuildID: d.guildID, Track: &track})
	fx.batch.Publish(events.TrackStartedEvent{
		SessionID: d.sessionID,
		GuildID:   d.guildID,
		Track:     track,
		StartedAt: d.startedAt,
	})
}

func (d *Dispatcher) onEndLocked(ctx context.Context, e node.TrackEndEvent, fx *effects) {
	if e.Reason == node.EndReasonReplaced {
		return
	}
	if !d.isCurrent(e.Encoded) {
		log.WithFields(log.Fields{
			"guildID": d.guildID,
			"reason":  e.Reason,
		}).Debug("Ignoring end event for a track that is not current")
		return
	}

	track := *d.current
	logger := log.WithFields(log.Fields{
		"guildID": d.guildID,
		"track":   track.Info.Title,
		"reason":  e.Reason,
	})

	if e.Reason.Failed() {
		logger.Warn("Track failed to play")
		d.current = nil
		d.playing = false
		d.paused = false
		d.skipLocked(fx, track, models.OutcomeFailed, string(e.Reason))
		if len(d.queue) > 0 {
			_ = d.playLocked(ctx, fx)
		} else {
			d.destroyLocked(fx, ReasonPlaybackFailure)
		}
		return
	}

	if e.Reason == node.EndReasonFinished && !d.startedAt.IsZero() {
		elapsed := time.Since(d.startedAt)
		if elapsed < prematureEndWindow && track.Duration() > prematureEndMinTrack {
			logger.WithFields(log.Fields{
				"elapsed":  elapsed,
				"duration": track.Duration(),
			}).Warn("Track finished much earlier than its duration")
		}
	}

	switch d.loop {
	case models.LoopTrack:
		d.queue = append([]models.Track{track}, d.queue...)
	case models.LoopQueue:
		d.queue = append(d.queue, track)
	}

	outcome := models.OutcomeFinished
	if e.Reason == node.EndReasonStopped {
		outcome = models.OutcomeStopped
	}
	fx.batch.Publish(d.trackEndedLocked(track, outcome))

	d.pushPreviousLocked(track)
	d.current = nil
	d.playing = false
	d.paused = false

	if len(d.queue) > 0 {
		_ = d.playLocked(ctx, fx)
	}
}

func (d *Dispatcher) onStuckLocked(ctx context.Context, e node.TrackStuckEvent, fx *effects) {
	if !d.isCurrent(e.Encoded) {
		return
	}
	log.WithFields(log.Fields{
		"guildID":     d.guildID,
		"track":       d.current.Info.Title,
		"thresholdMs": e.ThresholdMs,
	}).Warn("Track stuck, forcing stop")

	if d.conn == nil {
		d.destroyLocked(fx, ReasonConnectionClosed)
		return
	}
	// The resulting end event advances the queue
	cmdCtx, cancel := context.WithTimeout(ctx, nodeCommandTimeout)
	defer cancel()
	if err := d.conn.StopTrack(cmdCtx); err != nil {
		log.WithError(err).WithField("guildID", d.guildID).Error("Failed to stop stuck track")
	}
}

func (d *Dispatcher) onErrorLocked(ctx context.Context, e node.TrackExceptionEvent, fx *effects) {
	if !d.isCurrent(e.Encoded) {
		return
	}
	track := *d.current
	log.WithFields(log.Fields{
		"guildID": d.guildID,
		"track":   track.Info.Title,
		"error":   e.Err(),
	}).Error("Track playback raised an exception")

	d.current = nil
	d.playing = false
	d.paused = false
	d.skipLocked(fx, track, models.OutcomeFailed, e.Message)

	if len(d.queue) > 0 {
		_ = d.playLocked(ctx, fx)
		return
	}
	d.destroyLocked(fx, ReasonPlaybackFailure)
}

// onPlayerUpdateLocked re-anchors the local position estimate to the node's report
func (d *Dispatcher) onPlayerUpdateLocked(e node.PlayerUpdateEvent) {
	if d.current == nil || d.startedAt.IsZero() {
		return
	}
	d.posBase = e.Position
	if d.paused {
		d.posAt = time.Time{}
	} else {
		d.posAt = time.Now()
	}
}

func (d *Dispatcher) onClosedLocked(e node.WebSocketClosedEvent, fx *effects) {
	log.WithFields(log.Fields{
		"guildID":  d.guildID,
		"code":     e.Code,
		"reason":   e.Reason,
		"byRemote": e.ByRemote,
	}).Warn("Voice connection closed")
	d.destroyLocked(fx, ReasonConnectionClosed)
}

// Skip stops the current track. The node's end event advances the queue.
func (d *Dispatcher) Skip(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return ErrDestroyed
	}
	if d.conn == nil {
		return ErrNoConnection
	}
	if err := d.conn.StopTrack(ctx); err != nil {
		return fmt.Errorf("failed to stop track: %w", err)
	}
	return nil
}

// Pause pauses or resumes the current track
func (d *Dispatcher) Pause(ctx context.Context, paused bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return ErrDestroyed
	}
	if d.conn == nil {
		return ErrNoConnection
	}
	if d.current == nil {
		return ErrNothingPlaying
	}
	if err := d.conn.SetPaused(ctx, paused); err != nil {
		return fmt.Errorf("failed to set paused: %w", err)
	}

	now := time.Now()
	switch {
	case paused && !d.paused && !d.posAt.IsZero():
		d.posBase += now.Sub(d.posAt)
		d.posAt = time.Time{}
	case !paused && d.paused && !d.startedAt.IsZero():
		d.posAt = now
	}
	d.paused = paused
	d.playing = !paused
	return nil
}

// SetVolume changes playback volume, 0 to MaxVolume
func (d *Dispatcher) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > MaxVolume {
		return &ValidationError{Field: "volume", Message: fmt.Sprintf("must be between 0 and %d", MaxVolume)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return ErrDestroyed
	}
	if d.conn == nil {
		return ErrNoConnection
	}
	if err := d.conn.SetVolume(ctx, volume); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	d.volume = volume
	return nil
}

// SetLoop changes the loop mode
func (d *Dispatcher) SetLoop(mode models.LoopMode) error {
	if !mode.Valid() {
		return &ValidationError{Field: "loop", Message: fmt.Sprintf("unknown mode %q", mode)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return ErrDestroyed
	}
	d.loop = mode
	return nil
}

// Clear empties the queue and returns how many tracks it removed.
// The current track keeps playing.
func (d *Dispatcher) Clear() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return 0, ErrDestroyed
	}
	removed := len(d.queue)
	d.queue = d.queue[:0]
	return removed, nil
}

// Shuffle randomizes the queue in place
func (d *Dispatcher) Shuffle() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return ErrDestroyed
	}
	if len(d.queue) <= 1 {
		return nil
	}
	rand.Shuffle(len(d.queue), func(i, j int) {
		d.queue[i], d.queue[j] = d.queue[j], d.queue[i]
	})
	return nil
}

// Destroy tears the player down. Only the first call has any effect.
func (d *Dispatcher) Destroy(ctx context.Context, reason DestroyReason) {
	d.mu.Lock()
	fx := d.newEffects()
	d.destroyLocked(fx, reason)
	d.mu.Unlock()

	d.apply(ctx, fx)
}

func (d *Dispatcher) destroyLocked(fx *effects, reason DestroyReason) {
	if !d.exists {
		return
	}
	d.exists = false

	if d.current != nil {
		fx.batch.Publish(d.trackEndedLocked(*d.current, models.OutcomeStopped))
		d.pushPreviousLocked(*d.current)
		d.current = nil
	}
	d.playing = false
	d.paused = false
	close(d.done)

	log.WithFields(log.Fields{
		"guildID": d.guildID,
		"reason":  reason,
	}).Info("Destroying player")

	fx.teardown = reason
	fx.notify(Notification{Kind: NotifyDisconnected, GuildID: d.guildID, Reason: string(reason)})
	fx.batch.Publish(events.PlayerDestroyedEvent{
		SessionID:    d.sessionID,
		GuildID:      d.guildID,
		Reason:       string(reason),
		TracksPlayed: d.tracksPlayed,
		DestroyedAt:  time.Now(),
	})
}

// Exists reports whether the player is still live
func (d *Dispatcher) Exists() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exists
}

func (d *Dispatcher) GuildID() string {
	return d.guildID
}

func (d *Dispatcher) SessionID() string {
	return d.sessionID
}

func (d *Dispatcher) VoiceChannelID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voiceChannelID
}

// SetVoiceChannel records that the bot was moved to another channel
func (d *Dispatcher) SetVoiceChannel(channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists {
		return
	}
	d.voiceChannelID = channelID
}

func (d *Dispatcher) TextChannelID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.textChannelID
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateLocked()
}

func (d *Dispatcher) stateLocked() State {
	switch {
	case !d.exists:
		return StateDestroyed
	case d.conn == nil:
		return StateInitializing
	case d.current != nil && d.paused:
		return StatePaused
	case d.current != nil:
		return StatePlaying
	case d.hasPlayed:
		return StateIdle
	default:
		return StateReady
	}
}

// Snapshot is a point-in-time copy of a dispatcher's state
type Snapshot struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	State          State
	Current        *models.Track
	Position       time.Duration
	Queue          []models.Track
	Previous       []models.Track
	Loop           models.LoopMode
	Volume         int
	Playing        bool
	Paused         bool
}

// Snapshot copies the dispatcher's state for display
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := Snapshot{
		GuildID:        d.guildID,
		VoiceChannelID: d.voiceChannelID,
		TextChannelID:  d.textChannelID,
		State:          d.stateLocked(),
		Queue:          append([]models.Track(nil), d.queue...),
		Previous:       append([]models.Track(nil), d.previous...),
		Loop:           d.loop,
		Volume:         d.volume,
		Playing:        d.playing,
		Paused:         d.paused,
	}
	if d.current != nil {
		current := *d.current
		snap.Current = &current
		snap.Position = d.positionLocked()
	}
	return snap
}

func (d *Dispatcher) positionLocked() time.Duration {
	if d.startedAt.IsZero() {
		return 0
	}
	pos := d.posBase
	if !d.posAt.IsZero() {
		pos += time.Since(d.posAt)
	}
	return pos
}

// IsTerminal reports whether err means the player is gone and a new one is needed
func IsTerminal(err error) bool {
	return errors.Is(err, ErrDestroyed) || errors.Is(err, ErrInitFailure)
}

// Package botsync reconciles one consistent {bot, transcript} view
// from two independent sources: the event-push channel and the REST
// collaborator's pull endpoint.
package botsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coachflow/livesync/internal/api"
	"github.com/coachflow/livesync/internal/models"
	"github.com/coachflow/livesync/internal/observability/metrics"
)

const defaultPollInterval = 30 * time.Second

// StatusStopping is the optimistic local status after a stop request,
// pending confirmation from the next push or poll update.
const StatusStopping = "stopping"

// APIClient is the REST collaborator surface the engine needs.
type APIClient interface {
	GetBotInfo(ctx context.Context, botID string) (models.Bot, error)
	GetRealtimeTranscript(ctx context.Context, botID string) ([]models.TranscriptEntry, error)
	GetSessionByBotID(ctx context.Context, botID string) (models.Session, error)
	CreateSession(ctx context.Context, session models.Session) (models.Session, error)
	StopBot(ctx context.Context, botID string) error
}

// PushChannel is the consumer side of the event-push transport. The
// engine registers its handlers once at start; the channel's own
// connectivity signal drives the polling fallback.
type PushChannel interface {
	Connected() bool
	OnConnectionChange(fn func(connected bool))
	OnTranscriptNew(fn func(entry models.TranscriptEntry))
	OnTranscriptUpdate(fn func(update models.TranscriptUpdate))
	OnBotStatus(fn func(event models.BotStatusEvent))
	OnSessionCompleted(fn func(event models.SessionCompleted))
	OnPushError(fn func(event models.PushError))
}

// EventPublisher receives merged transcript entries and status
// transitions. Publishing is best-effort and never blocks a merge.
type EventPublisher interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
	PublishStatus(ctx context.Context, key string, event any) error
}

// Observers receive incremental view changes. Nil members are skipped.
type Observers struct {
	OnEntry            func(entry models.TranscriptEntry)
	OnStatus           func(status string)
	OnSessionCompleted func(event models.SessionCompleted)
	OnError            func(err error)
}

// Config configures a sync engine.
type Config struct {
	BotID      string
	ClientID   string
	ClientName string

	// PollInterval is the fallback fetch cadence while push is
	// disconnected.
	PollInterval time.Duration
}

// Engine owns the merged {bot, transcript} view for one bot.
type Engine struct {
	cfg    Config
	client APIClient
	push   PushChannel
	pub    EventPublisher
	obs    Observers
	log    zerolog.Logger
	m      *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// bootstrapMu serializes session bootstrap so concurrent starts
	// cannot race the lookup-then-create.
	bootstrapMu sync.Mutex

	mu       sync.Mutex
	bot      models.Bot
	store    *transcriptStore
	session  models.Session
	loadErr  string
	started  bool
	closed   bool
	polling  bool
	pollStop chan struct{}
}

// NewEngine creates an engine for one bot. The publisher may be nil.
func NewEngine(cfg Config, client APIClient, push PushChannel, pub EventPublisher, obs Observers, log zerolog.Logger) *Engine {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Engine{
		cfg:    cfg,
		client: client,
		push:   push,
		pub:    pub,
		obs:    obs,
		log:    log.With().Str("component", "botsync").Str("bot_id", cfg.BotID).Logger(),
		m:      metrics.DefaultMetrics,
		store:  newTranscriptStore(),
	}
}

// Start performs the initial load, registers the push handlers, and
// arms the polling fallback. Fetch failures are recorded as the load
// error state rather than aborting; the poll path recovers them.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	ctx = e.ctx
	e.mu.Unlock()

	e.push.OnTranscriptNew(e.handleTranscriptNew)
	e.push.OnTranscriptUpdate(e.handleTranscriptUpdate)
	e.push.OnBotStatus(e.handleBotStatus)
	e.push.OnSessionCompleted(e.handleSessionCompleted)
	e.push.OnPushError(e.handlePushError)
	e.push.OnConnectionChange(func(connected bool) {
		if connected {
			e.stopPolling()
		} else {
			e.startPolling()
		}
	})

	// Bot metadata and the transcript snapshot load concurrently.
	var (
		wg      sync.WaitGroup
		bot     models.Bot
		entries []models.TranscriptEntry
		botErr  error
		trErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		bot, botErr = e.client.GetBotInfo(ctx, e.cfg.BotID)
	}()
	go func() {
		defer wg.Done()
		entries, trErr = e.client.GetRealtimeTranscript(ctx, e.cfg.BotID)
	}()
	wg.Wait()

	e.mu.Lock()
	if botErr == nil {
		e.bot = bot
	}
	if trErr == nil {
		e.store.Replace(entries)
	}
	switch {
	case botErr != nil:
		e.loadErr = botErr.Error()
	case trErr != nil:
		e.loadErr = trErr.Error()
	default:
		e.loadErr = ""
	}
	e.mu.Unlock()

	if botErr != nil {
		e.log.Error().Err(botErr).Msg("Initial bot fetch failed")
		e.emitError(botErr)
	} else {
		e.log.Info().Str("status", bot.Status).Str("platform", bot.Platform).Msg("Bot loaded")
		if _, err := e.EnsureSession(ctx); err != nil {
			e.emitError(err)
		}
	}
	if trErr != nil {
		e.log.Error().Err(trErr).Msg("Initial transcript fetch failed")
		e.emitError(trErr)
	} else {
		e.log.Info().Int("entries", len(entries)).Msg("Transcript snapshot loaded")
	}

	if !e.push.Connected() {
		e.startPolling()
	}
	return nil
}

// EnsureSession guarantees a persisted session record exists for this
// bot: an idempotent lookup first, create only when absent. A session
// already present is reused, never treated as a conflict.
func (e *Engine) EnsureSession(ctx context.Context) (models.Session, error) {
	e.bootstrapMu.Lock()
	defer e.bootstrapMu.Unlock()

	session, err := e.client.GetSessionByBotID(ctx, e.cfg.BotID)
	switch {
	case err == nil:
		e.log.Debug().Str("session_id", session.ID).Msg("Reusing existing session")
	case errors.Is(err, api.ErrNotFound):
		e.mu.Lock()
		meetingURL := e.bot.MeetingURL
		e.mu.Unlock()
		session, err = e.client.CreateSession(ctx, models.Session{
			BotID:      e.cfg.BotID,
			ClientID:   e.cfg.ClientID,
			ClientName: e.cfg.ClientName,
			MeetingURL: meetingURL,
		})
		if err != nil {
			return models.Session{}, fmt.Errorf("session bootstrap: %w", err)
		}
		e.log.Info().Str("session_id", session.ID).Msg("Session created")
	default:
		return models.Session{}, fmt.Errorf("session bootstrap: %w", err)
	}

	e.mu.Lock()
	e.session = session
	e.mu.Unlock()
	return session, nil
}

// StopBot requests the bot stop and optimistically patches the local
// status; confirmation comes from the next push or poll update.
func (e *Engine) StopBot(ctx context.Context) error {
	if err := e.client.StopBot(ctx, e.cfg.BotID); err != nil {
		e.emitError(err)
		return err
	}
	e.setStatus(StatusStopping)
	return nil
}

// Close stops polling and detaches the engine. Push handler
// deregistration is the channel owner's concern.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancel := e.cancel
	e.mu.Unlock()

	e.stopPolling()
	if cancel != nil {
		cancel()
	}
}

// Bot returns the current bot view.
func (e *Engine) Bot() models.Bot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bot
}

// Transcript returns a copy of the merged transcript in order.
func (e *Engine) Transcript() []models.TranscriptEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Session returns the bootstrapped session record.
func (e *Engine) Session() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// LoadError returns the last data-fetch error state, empty when the
// most recent fetch succeeded.
func (e *Engine) LoadError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

func (e *Engine) handleTranscriptNew(entry models.TranscriptEntry) {
	e.m.RecordPushEvent("transcript:new")
	e.mu.Lock()
	e.store.Append(entry)
	e.mu.Unlock()

	e.m.RecordEntryMerged(entry.IsFinal)
	if e.obs.OnEntry != nil {
		e.obs.OnEntry(entry)
	}
	e.publishEntry(entry)
}

func (e *Engine) handleTranscriptUpdate(update models.TranscriptUpdate) {
	e.m.RecordPushEvent("transcript:update")
	e.mu.Lock()
	entry, ok := e.store.Update(update)
	e.mu.Unlock()
	if !ok {
		// Update raced the snapshot that would have indexed this id.
		e.log.Debug().Str("entry_id", update.EntryID).Msg("Update for unknown entry ignored")
		return
	}

	e.m.RecordEntryMerged(entry.IsFinal)
	if e.obs.OnEntry != nil {
		e.obs.OnEntry(entry)
	}
	e.publishEntry(entry)
}

func (e *Engine) handleBotStatus(event models.BotStatusEvent) {
	e.m.RecordPushEvent("bot:status")
	e.setStatus(event.Status)
}

func (e *Engine) handleSessionCompleted(event models.SessionCompleted) {
	e.m.RecordPushEvent("session:completed")
	e.log.Info().Str("session_id", event.SessionID).Msg("Session completed")
	if e.obs.OnSessionCompleted != nil {
		e.obs.OnSessionCompleted(event)
	}
}

func (e *Engine) handlePushError(event models.PushError) {
	e.m.RecordPushEvent("error")
	e.emitError(fmt.Errorf("push channel error %s: %s", event.Code, event.Message))
}

// setStatus patches only the bot's status, preserving every other
// field of the loaded record.
func (e *Engine) setStatus(status string) {
	if status == "" {
		return
	}
	e.mu.Lock()
	if e.bot.Status == status {
		e.mu.Unlock()
		return
	}
	e.bot.Status = status
	e.mu.Unlock()

	e.m.RecordStatusChange()
	e.log.Info().Str("status", status).Msg("Bot status changed")
	if e.obs.OnStatus != nil {
		e.obs.OnStatus(status)
	}
	if e.pub != nil {
		event := models.StatusChangeEvent{
			EventType: "bot.status.changed",
			BotID:     e.cfg.BotID,
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.pub.PublishStatus(context.Background(), e.cfg.BotID, event); err != nil {
			e.log.Warn().Err(err).Msg("Failed to publish status event")
		}
	}
}

func (e *Engine) publishEntry(entry models.TranscriptEntry) {
	if e.pub == nil {
		return
	}
	ctx := context.Background()
	var err error
	if entry.IsFinal {
		err = e.pub.PublishFinal(ctx, e.cfg.BotID, models.TranscriptFinalEvent{
			EventType:  "bot.transcript.final",
			BotID:      e.cfg.BotID,
			EntryID:    entry.ID,
			Speaker:    entry.Speaker,
			Text:       entry.Text,
			Confidence: entry.Confidence,
			Timestamp:  entry.Timestamp,
		})
	} else {
		err = e.pub.PublishPartial(ctx, e.cfg.BotID, models.TranscriptPartialEvent{
			EventType: "bot.transcript.partial",
			BotID:     e.cfg.BotID,
			EntryID:   entry.ID,
			Speaker:   entry.Speaker,
			Text:      entry.Text,
			Timestamp: entry.Timestamp,
		})
	}
	if err != nil {
		e.log.Warn().Err(err).Msg("Failed to publish transcript event")
	}
}

func (e *Engine) startPolling() {
	e.mu.Lock()
	if e.polling || e.closed {
		e.mu.Unlock()
		return
	}
	e.polling = true
	stop := make(chan struct{})
	e.pollStop = stop
	interval := e.cfg.PollInterval
	e.mu.Unlock()

	e.log.Info().Dur("interval", interval).Msg("Polling fallback started")
	go e.pollLoop(stop, interval)
}

func (e *Engine) stopPolling() {
	e.mu.Lock()
	if !e.polling {
		e.mu.Unlock()
		return
	}
	e.polling = false
	close(e.pollStop)
	e.pollStop = nil
	e.mu.Unlock()

	e.log.Info().Msg("Polling fallback stopped")
}

func (e *Engine) pollLoop(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.pollOnce()
		}
	}
}

// pollOnce re-fetches bot status and the full transcript snapshot.
// Each tick is an independent best-effort attempt; a failure does not
// back the interval off. The snapshot wholesale-replaces the local
// transcript, accepting interim-entry flicker in exchange for
// guaranteed convergence while push is down.
func (e *Engine) pollOnce() {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	bot, botErr := e.client.GetBotInfo(ctx, e.cfg.BotID)
	entries, trErr := e.client.GetRealtimeTranscript(ctx, e.cfg.BotID)

	err := botErr
	if err == nil {
		err = trErr
	}
	e.m.RecordPollTick(err)

	if botErr == nil {
		e.setStatus(bot.Status)
	}
	e.mu.Lock()
	if trErr == nil {
		e.store.Replace(entries)
	}
	if err != nil {
		e.loadErr = err.Error()
	} else {
		e.loadErr = ""
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Warn().Err(err).Msg("Poll fetch failed")
	}
}

func (e *Engine) emitError(err error) {
	if e.obs.OnError != nil {
		e.obs.OnError(err)
	}
}

// Package realtime implements the client side of the conversational
// voice-link protocol: a persistent websocket carrying JSON control
// messages with base64 PCM16 audio payloads.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coachflow/livesync/internal/audio"
	"github.com/coachflow/livesync/internal/observability/metrics"
)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectBaseDelay   = time.Second
	defaultReconnectMaxDelay    = 30 * time.Second
	defaultVoice                = "alloy"

	// Mic frames are coalesced before hitting the wire to reduce
	// per-message overhead.
	framesPerAppend = 2
)

var (
	// ErrNotConnected is returned by send operations while the socket
	// is not open.
	ErrNotConnected = errors.New("realtime socket not connected")

	// ErrReconnectFailed is the terminal error surfaced once the
	// reconnect attempt cap is exhausted.
	ErrReconnectFailed = errors.New("unable to establish connection after multiple attempts")
)

// Config configures a realtime voice-link client.
type Config struct {
	// URL is the websocket base, e.g. ws://localhost:8000.
	URL      string
	ClientID string
	Token    string
	Voice    string

	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = defaultReconnectBaseDelay
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = defaultReconnectMaxDelay
	}
	if c.Voice == "" {
		c.Voice = defaultVoice
	}
}

// Callbacks is the observer interface for realtime session events.
// Nil members are skipped.
type Callbacks struct {
	OnTranscript       func(text string, isFinal bool)
	OnSources          func(sources []Source)
	OnError            func(err error)
	OnConnectionChange func(connected bool)
}

// Client maintains the bidirectional voice session: connection
// lifecycle with capped exponential-backoff reconnection, inbound
// message dispatch, microphone capture with frame coalescing, and
// sequential audio playback.
type Client struct {
	cfg    Config
	cb     Callbacks
	log    zerolog.Logger
	m      *metrics.Metrics
	dialer *websocket.Dialer

	input  audio.InputDevice
	player *audio.Player

	// writeMu serializes socket writes; message ordering is part of
	// the protocol contract (text item before response trigger,
	// audio appends before commit).
	writeMu sync.Mutex

	mu             sync.Mutex
	conn           *websocket.Conn
	connecting     bool
	connected      bool
	stopping       bool
	closed         bool
	recording      bool
	speaking       bool
	voice          string
	transcript     string
	interim        string
	sources        []Source
	attempts       int
	reconnectTimer *time.Timer
	capture        *audio.Capture
	pendingAudio   [][]byte
}

// NewClient creates a client over the given audio devices. The client
// owns playback; the input device is started per recording session.
func NewClient(cfg Config, mic audio.InputDevice, speaker audio.OutputDevice, cb Callbacks, log zerolog.Logger) *Client {
	cfg.applyDefaults()
	l := log.With().Str("component", "realtime").Logger()
	return &Client{
		cfg:    cfg,
		cb:     cb,
		log:    l,
		m:      metrics.DefaultMetrics,
		dialer: websocket.DefaultDialer,
		input:  mic,
		player: audio.NewPlayer(speaker, l),
		voice:  cfg.Voice,
	}
}

func (c *Client) dialURL() string {
	u := fmt.Sprintf("%s/api/v1/realtime/ws/realtime/%s",
		strings.TrimRight(c.cfg.URL, "/"), c.cfg.ClientID)
	if c.cfg.Token != "" {
		u += "?token=" + url.QueryEscape(c.cfg.Token)
	}
	return u
}

// Connect dials the realtime socket. A call while already connecting
// or connected is a no-op. On open the reconnect state is reset and
// the session configuration with the current voice is sent.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.connecting || c.connected {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.stopping = false
	c.mu.Unlock()

	connID := uuid.NewString()
	log := c.log.With().Str("conn_id", connID).Logger()
	log.Info().Str("client_id", c.cfg.ClientID).Msg("Connecting realtime socket")

	conn, resp, err := c.dialer.Dial(c.dialURL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		log.Error().Err(err).Msg("Realtime dial failed")
		c.emitError(fmt.Errorf("connecting realtime socket: %w", err))
		c.scheduleReconnect(log)
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.connecting = false
	c.connected = true
	c.attempts = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	voice := c.voice
	c.mu.Unlock()

	c.m.RecordConnect()
	log.Info().Str("voice", voice).Msg("Realtime socket connected")
	if c.cb.OnConnectionChange != nil {
		c.cb.OnConnectionChange(true)
	}

	if err := c.send(newSessionUpdate(voice)); err != nil {
		log.Error().Err(err).Msg("Failed to send initial session config")
	}

	go c.readLoop(conn, log)
}

// Disconnect closes the socket deliberately: any pending reconnect
// timer is cancelled and the resulting close will not trigger a new
// reconnect cycle.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopping = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second))
	c.writeMu.Unlock()
	_ = conn.Close()
}

// SetEnabled drives the connection lifecycle: true connects, false
// disconnects. This is the external lifecycle control used by UI
// layers toggling the voice feature.
func (c *Client) SetEnabled(enabled bool) {
	if enabled {
		c.Connect()
	} else {
		c.Disconnect()
	}
}

// Close tears the client down: stops capture, disconnects, and
// releases the output device.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	capture := c.capture
	c.capture = nil
	c.recording = false
	c.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	c.Disconnect()
	return c.player.Close()
}

func (c *Client) readLoop(conn *websocket.Conn, log zerolog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err, log)
			return
		}
		c.handleMessage(data, log)
	}
}

func (c *Client) handleClose(conn *websocket.Conn, err error, log zerolog.Logger) {
	_ = conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		// A newer connection owns the state already.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.speaking = false
	deliberate := c.stopping || websocket.IsCloseError(err, websocket.CloseNormalClosure)
	c.mu.Unlock()

	c.m.RecordDisconnect()
	log.Info().Bool("deliberate", deliberate).Err(err).Msg("Realtime socket disconnected")
	if c.cb.OnConnectionChange != nil {
		c.cb.OnConnectionChange(false)
	}

	if !deliberate {
		c.scheduleReconnect(log)
	}
}

func (c *Client) scheduleReconnect(log zerolog.Logger) {
	c.mu.Lock()
	if c.closed || c.stopping {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		c.m.RecordReconnectFailure()
		log.Error().Int("attempts", c.cfg.MaxReconnectAttempts).Msg("Reconnect attempt cap exhausted")
		c.emitError(ErrReconnectFailed)
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := c.cfg.ReconnectBaseDelay << uint(attempt-1)
	if delay > c.cfg.ReconnectMaxDelay {
		delay = c.cfg.ReconnectMaxDelay
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, c.Connect)
	c.mu.Unlock()

	c.m.RecordReconnectAttempt()
	log.Warn().
		Int("attempt", attempt).
		Int("max", c.cfg.MaxReconnectAttempts).
		Dur("delay", delay).
		Msg("Scheduling reconnect")
}

func (c *Client) handleMessage(data []byte, log zerolog.Logger) {
	typ, msg, err := decodeServerMessage(data)
	if err != nil {
		// A single undecodable message must not take the loop down.
		log.Warn().Err(err).Msg("Dropping undecodable message")
		c.emitError(err)
		return
	}
	if msg == nil {
		log.Debug().Str("type", typ).Msg("Ignoring unknown message type")
		return
	}
	c.m.RecordMessageReceived(typ)

	switch m := msg.(type) {
	case audioDeltaMessage:
		if m.Delta == "" {
			return
		}
		pcm, err := audio.DecodeBase64(m.Delta)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping audio delta with bad payload")
			c.emitError(err)
			return
		}
		c.m.RecordAudioReceived(len(pcm))
		c.mu.Lock()
		c.speaking = true
		c.mu.Unlock()
		c.player.Enqueue(pcm)

	case audioDoneMessage:
		c.mu.Lock()
		c.speaking = false
		c.mu.Unlock()

	case transcriptDeltaMessage:
		if m.Delta == "" {
			return
		}
		c.mu.Lock()
		c.interim += m.Delta
		c.mu.Unlock()
		if c.cb.OnTranscript != nil {
			c.cb.OnTranscript(m.Delta, false)
		}

	case transcriptDoneMessage:
		if m.Transcript == "" {
			return
		}
		c.mu.Lock()
		c.transcript = m.Transcript
		c.interim = ""
		c.mu.Unlock()
		if c.cb.OnTranscript != nil {
			c.cb.OnTranscript(m.Transcript, true)
		}

	case itemCreatedMessage:
		if m.Item.Type != "function_call_output" {
			return
		}
		var out functionOutput
		if err := json.Unmarshal([]byte(m.Item.Output), &out); err != nil {
			log.Warn().Err(err).Msg("Failed to parse function call output")
			return
		}
		if len(out.Sources) == 0 {
			return
		}
		c.mu.Lock()
		c.sources = out.Sources
		c.mu.Unlock()
		if c.cb.OnSources != nil {
			c.cb.OnSources(out.Sources)
		}

	case errorMessage:
		log.Warn().Str("code", m.Error.Code).Str("message", m.Error.Message).Msg("Server reported error")
		c.emitError(fmt.Errorf("server error: %s", m.Error.Message))
	}
}

// Send writes one protocol message to the socket. While disconnected
// it signals the error observer instead of silently dropping.
func (c *Client) Send(msg any) error {
	return c.send(msg)
}

func (c *Client) send(msg any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.emitError(ErrNotConnected)
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// StartRecording resumes the output device and begins microphone
// capture. Frames are buffered and flushed to the wire every
// framesPerAppend frames. Device failure is returned as an error
// after signalling the observer.
func (c *Client) StartRecording() error {
	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.player.Resume(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to resume output device")
	}

	capture := audio.NewCapture(c.input, c.onMicFrame, c.log)
	if !capture.Start() {
		err := errors.New("failed to start microphone")
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.capture = capture
	c.recording = true
	c.transcript = ""
	c.interim = ""
	c.pendingAudio = nil
	c.mu.Unlock()

	c.log.Info().Msg("Recording started")
	return nil
}

// StopRecording flushes any buffered audio, sends the commit so the
// server processes the input segment, then releases the microphone.
func (c *Client) StopRecording() {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return
	}
	c.recording = false
	capture := c.capture
	c.capture = nil
	flush := combineFrames(c.pendingAudio)
	c.pendingAudio = nil
	c.mu.Unlock()

	if len(flush) > 0 {
		c.sendAudio(flush)
	}
	if err := c.send(controlMessage{Type: msgAudioCommit}); err != nil {
		c.log.Warn().Err(err).Msg("Failed to commit audio buffer")
	}

	if capture != nil {
		capture.Stop()
	}
	c.log.Info().Msg("Recording stopped")
}

func (c *Client) onMicFrame(pcm []byte) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return
	}
	c.pendingAudio = append(c.pendingAudio, pcm)
	var flush []byte
	if len(c.pendingAudio) >= framesPerAppend {
		flush = combineFrames(c.pendingAudio)
		c.pendingAudio = nil
	}
	c.mu.Unlock()

	if flush != nil {
		c.sendAudio(flush)
	}
}

func (c *Client) sendAudio(pcm []byte) {
	if err := c.send(newAudioAppend(audio.EncodeBase64(pcm))); err != nil {
		return
	}
	c.m.RecordAudioSent(len(pcm))
}

func combineFrames(frames [][]byte) []byte {
	var total int
	for _, f := range frames {
		total += len(f)
	}
	if total == 0 {
		return nil
	}
	out := make([]byte, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// SendText submits a user text message and triggers a response. The
// two sends rely on the socket's in-order delivery; the trigger is
// not held back for an acknowledgment.
func (c *Client) SendText(text string) error {
	if err := c.send(newUserText(text)); err != nil {
		return err
	}
	return c.send(controlMessage{Type: msgResponseCreate})
}

// StopSpeaking halts local playback immediately and cancels the
// in-flight response so the server stops streaming further audio.
func (c *Client) StopSpeaking() {
	c.player.Stop()
	c.mu.Lock()
	c.speaking = false
	c.mu.Unlock()
	_ = c.send(controlMessage{Type: msgResponseCancel})
}

// UpdateVoice changes the voice locally and, while connected, pushes
// the new session configuration. While disconnected the new voice
// takes effect on the next connect's initial config send.
func (c *Client) UpdateVoice(voice string) {
	c.mu.Lock()
	c.voice = voice
	connected := c.connected
	c.mu.Unlock()

	if connected {
		_ = c.send(newSessionUpdate(voice))
	}
}

// ClearConversation resets the local transcript state and, while
// connected, clears the server-side input buffer.
func (c *Client) ClearConversation() {
	c.mu.Lock()
	c.transcript = ""
	c.interim = ""
	c.sources = nil
	connected := c.connected
	c.mu.Unlock()

	if connected {
		_ = c.send(controlMessage{Type: msgAudioClear})
	}
}

// IsConnected reports whether the socket is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// IsRecording reports whether microphone capture is active.
func (c *Client) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// IsSpeaking reports whether assistant audio is currently streaming.
func (c *Client) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Transcript returns the last finalized assistant transcript.
func (c *Client) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// InterimTranscript returns the accumulated provisional transcript.
func (c *Client) InterimTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interim
}

// Sources returns the citations from the most recent retrieval.
func (c *Client) Sources() []Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Source, len(c.sources))
	copy(out, c.sources)
	return out
}

// CurrentVoice returns the configured voice.
func (c *Client) CurrentVoice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

func (c *Client) emitError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}

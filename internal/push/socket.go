// Package push implements the event-push channel: a websocket client
// that joins per-bot rooms and dispatches named server events to
// registered handlers. Its connectivity signal drives the sync
// engine's polling fallback.
package push

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/coachflow/livesync/internal/models"
	"github.com/coachflow/livesync/internal/observability/metrics"
)

const (
	defaultMaxReconnectAttempts = 10
	defaultReconnectBaseDelay   = time.Second
	defaultReconnectMaxDelay    = 30 * time.Second
	pingInterval                = 30 * time.Second
)

// Config configures a push socket.
type Config struct {
	// URL is the websocket base, e.g. ws://localhost:8000.
	URL   string
	Token string
	BotID string

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
}

// envelope is the wire form of every push message.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type transcriptNewPayload struct {
	BotID string                 `json:"botId"`
	Entry models.TranscriptEntry `json:"entry"`
}

type transcriptUpdatePayload struct {
	BotID   string `json:"botId"`
	EntryID string `json:"entryId"`
	Updates struct {
		Text       *string  `json:"text"`
		IsFinal    *bool    `json:"isFinal"`
		Confidence *float64 `json:"confidence"`
		EndTime    *float64 `json:"endTime"`
	} `json:"updates"`
}

type botStatusPayload struct {
	BotID     string `json:"botId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Context *struct {
		BotID string `json:"botId"`
	} `json:"context"`
}

// Socket is the push channel transport for one bot's room.
type Socket struct {
	cfg    Config
	log    zerolog.Logger
	m      *metrics.Metrics
	dialer *websocket.Dialer

	writeMu sync.Mutex

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	connecting     bool
	stopping       bool
	closed         bool
	attempts       int
	reconnectTimer *time.Timer
	pingStop       chan struct{}

	onConn      func(bool)
	onNew       func(models.TranscriptEntry)
	onUpd       func(models.TranscriptUpdate)
	onStatus    func(models.BotStatusEvent)
	onCompleted func(models.SessionCompleted)
	onErr       func(models.PushError)
}

// NewSocket creates a push socket for one bot's room.
func NewSocket(cfg Config, log zerolog.Logger) *Socket {
	cfg.applyDefaults()
	return &Socket{
		cfg:    cfg,
		log:    log.With().Str("component", "push").Str("bot_id", cfg.BotID).Logger(),
		m:      metrics.DefaultMetrics,
		dialer: websocket.DefaultDialer,
	}
}

// OnConnectionChange registers the connectivity observer.
func (s *Socket) OnConnectionChange(fn func(connected bool)) {
	s.mu.Lock()
	s.onConn = fn
	s.mu.Unlock()
}

// OnTranscriptNew registers the new-entry handler.
func (s *Socket) OnTranscriptNew(fn func(entry models.TranscriptEntry)) {
	s.mu.Lock()
	s.onNew = fn
	s.mu.Unlock()
}

// OnTranscriptUpdate registers the entry-update handler.
func (s *Socket) OnTranscriptUpdate(fn func(update models.TranscriptUpdate)) {
	s.mu.Lock()
	s.onUpd = fn
	s.mu.Unlock()
}

// OnBotStatus registers the status handler.
func (s *Socket) OnBotStatus(fn func(event models.BotStatusEvent)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// OnSessionCompleted registers the completion handler.
func (s *Socket) OnSessionCompleted(fn func(event models.SessionCompleted)) {
	s.mu.Lock()
	s.onCompleted = fn
	s.mu.Unlock()
}

// OnPushError registers the error handler.
func (s *Socket) OnPushError(fn func(event models.PushError)) {
	s.mu.Lock()
	s.onErr = fn
	s.mu.Unlock()
}

// Connected reports whether the socket is open.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Socket) dialURL() string {
	u := s.cfg.URL + "/ws"
	if s.cfg.Token != "" {
		u += "?token=" + url.QueryEscape(s.cfg.Token)
	}
	return u
}

// Connect dials the push endpoint and joins the bot room. A call
// while connecting or connected is a no-op.
func (s *Socket) Connect() {
	s.mu.Lock()
	if s.closed || s.connecting || s.connected {
		s.mu.Unlock()
		return
	}
	s.connecting = true
	s.stopping = false
	s.mu.Unlock()

	conn, resp, err := s.dialer.Dial(s.dialURL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Push dial failed")
		s.scheduleReconnect()
		return
	}

	pingStop := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.connecting = false
	s.connected = true
	s.attempts = 0
	s.pingStop = pingStop
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	onConn := s.onConn
	s.mu.Unlock()

	s.log.Info().Msg("Push channel connected")
	if onConn != nil {
		onConn(true)
	}

	// Rooms are (re)joined on every open so a reconnect resumes the
	// same subscription.
	if err := s.sendEnvelope("join", map[string]string{"room": s.room()}); err != nil {
		s.log.Error().Err(err).Msg("Failed to join bot room")
	}

	go s.readLoop(conn)
	go s.pingLoop(conn, pingStop)
}

func (s *Socket) room() string {
	return "bot:" + s.cfg.BotID
}

// Close leaves the room and closes the socket without triggering
// reconnection.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopping = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return
	}
	_ = s.sendEnvelope("leave", map[string]string{"room": s.room()})
	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second))
	s.writeMu.Unlock()
	_ = conn.Close()
}

func (s *Socket) sendEnvelope(msgType string, data any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("push channel not connected")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(envelope{Type: msgType, Data: payload})
}

func (s *Socket) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.sendEnvelope("ping", struct{}{}); err != nil {
				return
			}
		}
	}
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(conn, err)
			return
		}
		s.dispatch(data)
	}
}

func (s *Socket) handleClose(conn *websocket.Conn, err error) {
	_ = conn.Close()

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connected = false
	if s.pingStop != nil {
		close(s.pingStop)
		s.pingStop = nil
	}
	deliberate := s.stopping || s.closed || websocket.IsCloseError(err, websocket.CloseNormalClosure)
	onConn := s.onConn
	s.mu.Unlock()

	s.log.Info().Bool("deliberate", deliberate).Err(err).Msg("Push channel disconnected")
	if onConn != nil {
		onConn(false)
	}
	if !deliberate {
		s.scheduleReconnect()
	}
}

func (s *Socket) scheduleReconnect() {
	s.mu.Lock()
	if s.closed || s.stopping {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.cfg.MaxReconnectAttempts {
		s.mu.Unlock()
		s.log.Error().Int("attempts", s.cfg.MaxReconnectAttempts).Msg("Push reconnect attempt cap exhausted")
		s.emitError(models.PushError{Code: "reconnect_failed", Message: "push channel reconnect attempts exhausted"})
		return
	}
	s.attempts++
	attempt := s.attempts
	delay := s.cfg.ReconnectBaseDelay << uint(attempt-1)
	if delay > s.cfg.ReconnectMaxDelay {
		delay = s.cfg.ReconnectMaxDelay
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = time.AfterFunc(delay, s.Connect)
	s.mu.Unlock()

	s.log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("Scheduling push reconnect")
}

func (s *Socket) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn().Err(err).Msg("Dropping undecodable push message")
		return
	}
	s.m.RecordPushEvent(env.Type)

	switch env.Type {
	case "pong":
		// Keepalive reply, nothing to do.

	case "transcript:new":
		var p transcriptNewPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.log.Warn().Err(err).Msg("Bad transcript:new payload")
			return
		}
		if p.BotID != s.cfg.BotID {
			return
		}
		s.mu.Lock()
		fn := s.onNew
		s.mu.Unlock()
		if fn != nil {
			fn(p.Entry)
		}

	case "transcript:update":
		var p transcriptUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.log.Warn().Err(err).Msg("Bad transcript:update payload")
			return
		}
		if p.BotID != s.cfg.BotID {
			return
		}
		s.mu.Lock()
		fn := s.onUpd
		s.mu.Unlock()
		if fn != nil {
			fn(models.TranscriptUpdate{
				EntryID: p.EntryID,
				Text:    p.Updates.Text,
				IsFinal: p.Updates.IsFinal,
				Conf:    p.Updates.Confidence,
				EndTime: p.Updates.EndTime,
			})
		}

	case "bot:status":
		var p botStatusPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.log.Warn().Err(err).Msg("Bad bot:status payload")
			return
		}
		if p.BotID != s.cfg.BotID {
			return
		}
		s.mu.Lock()
		fn := s.onStatus
		s.mu.Unlock()
		if fn != nil {
			fn(models.BotStatusEvent{Status: p.Status, Timestamp: p.Timestamp})
		}

	case "session:completed":
		var p models.SessionCompleted
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.log.Warn().Err(err).Msg("Bad session:completed payload")
			return
		}
		if p.BotID != s.cfg.BotID {
			return
		}
		s.mu.Lock()
		fn := s.onCompleted
		s.mu.Unlock()
		if fn != nil {
			fn(p)
		}

	case "error":
		var p errorPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.log.Warn().Err(err).Msg("Bad error payload")
			return
		}
		// Errors scoped to another bot's context are not ours.
		if p.Context != nil && p.Context.BotID != s.cfg.BotID {
			return
		}
		s.emitError(models.PushError{Code: p.Code, Message: p.Message})

	default:
		s.log.Debug().Str("type", env.Type).Msg("Ignoring unknown push event")
	}
}

func (s *Socket) emitError(event models.PushError) {
	s.mu.Lock()
	fn := s.onErr
	s.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}

// Package api implements the HTTP client for the bot/session REST
// collaborator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/coachflow/livesync/internal/models"
)

const defaultTimeout = 15 * time.Second

// ErrNotFound is returned when the collaborator has no record for the
// requested id.
var ErrNotFound = errors.New("not found")

// Config contains REST client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the bot/session REST collaborator.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a REST client with a client-level request timeout.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "api").Logger(),
	}
}

// botPayload is the wire form of a bot record. meeting_url arrives
// either as a plain URL string or as an object carrying a meeting id.
type botPayload struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	MeetingURL json.RawMessage `json:"meeting_url"`
	Platform   string          `json:"platform"`
	MeetingID  string          `json:"meeting_id"`
}

func (p botPayload) normalize() models.Bot {
	bot := models.Bot{
		ID:        p.ID,
		Status:    p.Status,
		Platform:  p.Platform,
		MeetingID: p.MeetingID,
	}
	if bot.Platform == "" {
		bot.Platform = "unknown"
	}
	bot.MeetingURL = resolveMeetingURL(p.MeetingURL)
	return bot
}

// resolveMeetingURL turns whichever meeting_url shape the collaborator
// sent into a usable link, falling back to "#".
func resolveMeetingURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "#"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var obj struct {
		MeetingID string `json:"meeting_id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.MeetingID != "" {
		return "https://meet.google.com/" + obj.MeetingID
	}
	return "#"
}

// GetBotInfo fetches and normalizes one bot record.
func (c *Client) GetBotInfo(ctx context.Context, botID string) (models.Bot, error) {
	var payload botPayload
	if err := c.get(ctx, "/api/v1/bots/"+url.PathEscape(botID), &payload); err != nil {
		return models.Bot{}, fmt.Errorf("fetching bot %s: %w", botID, err)
	}
	return payload.normalize(), nil
}

// GetRealtimeTranscript fetches the current transcript snapshot.
func (c *Client) GetRealtimeTranscript(ctx context.Context, botID string) ([]models.TranscriptEntry, error) {
	var payload struct {
		Transcripts []models.TranscriptEntry `json:"transcripts"`
	}
	if err := c.get(ctx, "/api/v1/bots/"+url.PathEscape(botID)+"/transcript", &payload); err != nil {
		return nil, fmt.Errorf("fetching transcript for bot %s: %w", botID, err)
	}
	return payload.Transcripts, nil
}

// GetSessionByBotID looks up the persisted session for a bot,
// returning ErrNotFound when none exists yet.
func (c *Client) GetSessionByBotID(ctx context.Context, botID string) (models.Session, error) {
	var session models.Session
	err := c.get(ctx, "/api/v1/sessions?botId="+url.QueryEscape(botID), &session)
	if err != nil {
		return models.Session{}, fmt.Errorf("looking up session for bot %s: %w", botID, err)
	}
	return session, nil
}

// CreateSession persists a new session record.
func (c *Client) CreateSession(ctx context.Context, session models.Session) (models.Session, error) {
	var created models.Session
	if err := c.post(ctx, "/api/v1/sessions", session, &created); err != nil {
		return models.Session{}, fmt.Errorf("creating session for bot %s: %w", session.BotID, err)
	}
	return created, nil
}

// StopBot requests the server stop the bot. Confirmation arrives via
// the next push or poll update, not this response.
func (c *Client) StopBot(ctx context.Context, botID string) error {
	if err := c.post(ctx, "/api/v1/bots/"+url.PathEscape(botID)+"/stop", nil, nil); err != nil {
		return fmt.Errorf("stopping bot %s: %w", botID, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("path", req.URL.Path).
			Msg("Request failed")
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

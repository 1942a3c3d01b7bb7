// Package models defines the data structures shared by the sync engine,
// the push channel, and the REST collaborator client.
package models

import "encoding/json"

// Bot represents one meeting-recording bot as observed by the client.
// Only Status changes after the initial fetch; all other fields are
// immutable once the bot has been loaded.
type Bot struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	MeetingURL string `json:"meetingUrl"`
	Platform   string `json:"platform"`
	MeetingID  string `json:"meetingId"`
}

// TranscriptEntry is one utterance unit. Entries carrying an ID can be
// updated in place; entries without an ID are append-only.
type TranscriptEntry struct {
	ID         string  `json:"id,omitempty"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Timestamp  string  `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
	StartTime  float64 `json:"startTime,omitempty"`
	EndTime    float64 `json:"endTime,omitempty"`
}

// UnmarshalJSON defaults Confidence to 1.0 when the source payload
// omits it, so downstream consumers never see a zero confidence for an
// entry the provider considered certain.
func (e *TranscriptEntry) UnmarshalJSON(data []byte) error {
	type alias TranscriptEntry
	aux := struct {
		Confidence *float64 `json:"confidence"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Confidence == nil {
		e.Confidence = 1.0
	} else {
		e.Confidence = *aux.Confidence
	}
	return nil
}

// TranscriptUpdate is a partial patch for an existing entry, keyed by
// the entry's ID. Nil fields are left untouched.
type TranscriptUpdate struct {
	EntryID string   `json:"entryId"`
	Text    *string  `json:"text,omitempty"`
	IsFinal *bool    `json:"isFinal,omitempty"`
	Conf    *float64 `json:"confidence,omitempty"`
	EndTime *float64 `json:"endTime,omitempty"`
}

// BotStatusEvent carries a status transition pushed by the server.
type BotStatusEvent struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SessionCompleted notifies that the server finished persisting a
// session for a bot.
type SessionCompleted struct {
	SessionID string `json:"sessionId"`
	BotID     string `json:"botId"`
	Timestamp string `json:"timestamp"`
}

// PushError is an error event delivered over the push channel.
type PushError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Session is the persisted session record linked to a bot.
type Session struct {
	ID         string `json:"id"`
	BotID      string `json:"botId"`
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	MeetingURL string `json:"meetingUrl"`
}

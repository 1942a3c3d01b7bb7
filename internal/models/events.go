package models

// TranscriptPartialEvent is published when an interim transcript entry
// is merged into a bot's live transcript.
type TranscriptPartialEvent struct {
	EventType string `json:"eventType"`
	BotID     string `json:"botId"`
	EntryID   string `json:"entryId,omitempty"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// TranscriptFinalEvent is published when an entry settles as final.
type TranscriptFinalEvent struct {
	EventType  string  `json:"eventType"`
	BotID      string  `json:"botId"`
	EntryID    string  `json:"entryId,omitempty"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// StatusChangeEvent is published when a bot's status transitions.
type StatusChangeEvent struct {
	EventType string `json:"eventType"`
	BotID     string `json:"botId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

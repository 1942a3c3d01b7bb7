package realtime

import (
	"encoding/json"
	"fmt"
)

// Outbound message types.
const (
	msgSessionUpdate          = "session.update"
	msgAudioAppend            = "input_audio_buffer.append"
	msgAudioCommit            = "input_audio_buffer.commit"
	msgAudioClear             = "input_audio_buffer.clear"
	msgConversationItemCreate = "conversation.item.create"
	msgResponseCreate         = "response.create"
	msgResponseCancel         = "response.cancel"
)

// Inbound message types.
const (
	msgAudioDelta          = "response.audio.delta"
	msgAudioDone           = "response.audio.done"
	msgTranscriptDelta     = "response.audio_transcript.delta"
	msgTranscriptDone      = "response.audio_transcript.done"
	msgConversationCreated = "conversation.item.created"
	msgError               = "error"
)

// Source is a retrieval citation surfaced through a function-call
// output item.
type Source struct {
	SessionID string   `json:"session_id,omitempty"`
	Date      string   `json:"date"`
	Topics    []string `json:"topics"`
	Relevance float64  `json:"relevance"`
	Content   string   `json:"content,omitempty"`
}

type sessionConfig struct {
	Voice string `json:"voice"`
}

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type audioAppendMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// controlMessage covers the outbound types that carry no payload.
type controlMessage struct {
	Type string `json:"type"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []contentPart `json:"content,omitempty"`
}

type conversationItemCreateMessage struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

func newSessionUpdate(voice string) sessionUpdateMessage {
	return sessionUpdateMessage{Type: msgSessionUpdate, Session: sessionConfig{Voice: voice}}
}

func newAudioAppend(b64 string) audioAppendMessage {
	return audioAppendMessage{Type: msgAudioAppend, Audio: b64}
}

func newUserText(text string) conversationItemCreateMessage {
	return conversationItemCreateMessage{
		Type: msgConversationItemCreate,
		Item: conversationItem{
			Type:    "message",
			Role:    "user",
			Content: []contentPart{{Type: "input_text", Text: text}},
		},
	}
}

// Inbound messages, decoded per type.

type audioDeltaMessage struct {
	Delta string `json:"delta"`
}

type audioDoneMessage struct{}

type transcriptDeltaMessage struct {
	Delta string `json:"delta"`
}

type transcriptDoneMessage struct {
	Transcript string `json:"transcript"`
}

type inboundItem struct {
	Type   string `json:"type"`
	Output string `json:"output"`
}

type itemCreatedMessage struct {
	Item inboundItem `json:"item"`
}

type functionOutput struct {
	Sources []Source `json:"sources"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorMessage struct {
	Error serverError `json:"error"`
}

// decodeServerMessage decodes one inbound frame into its typed form.
// Unknown types return (type, nil, nil) so the dispatch loop can skip
// them without treating forward-compatible messages as failures.
func decodeServerMessage(data []byte) (string, any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decoding message envelope: %w", err)
	}

	switch env.Type {
	case msgAudioDelta:
		var m audioDeltaMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return env.Type, nil, fmt.Errorf("decoding %s: %w", env.Type, err)
		}
		return env.Type, m, nil
	case msgAudioDone:
		return env.Type, audioDoneMessage{}, nil
	case msgTranscriptDelta:
		var m transcriptDeltaMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return env.Type, nil, fmt.Errorf("decoding %s: %w", env.Type, err)
		}
		return env.Type, m, nil
	case msgTranscriptDone:
		var m transcriptDoneMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return env.Type, nil, fmt.Errorf("decoding %s: %w", env.Type, err)
		}
		return env.Type, m, nil
	case msgConversationCreated:
		var m itemCreatedMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return env.Type, nil, fmt.Errorf("decoding %s: %w", env.Type, err)
		}
		return env.Type, m, nil
	case msgError:
		var m errorMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return env.Type, nil, fmt.Errorf("decoding %s: %w", env.Type, err)
		}
		return env.Type, m, nil
	default:
		return env.Type, nil, nil
	}
}

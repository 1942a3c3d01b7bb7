package realtime

import (
	"encoding/json"
	"testing"
)

func TestDecodeServerMessage_AudioDelta(t *testing.T) {
	typ, msg, err := decodeServerMessage([]byte(`{"type":"response.audio.delta","delta":"AAEC"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != msgAudioDelta {
		t.Errorf("expected type %q, got %q", msgAudioDelta, typ)
	}
	m, ok := msg.(audioDeltaMessage)
	if !ok {
		t.Fatalf("expected audioDeltaMessage, got %T", msg)
	}
	if m.Delta != "AAEC" {
		t.Errorf("expected delta AAEC, got %q", m.Delta)
	}
}

func TestDecodeServerMessage_TranscriptDone(t *testing.T) {
	typ, msg, err := decodeServerMessage([]byte(`{"type":"response.audio_transcript.done","transcript":"hello there"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != msgTranscriptDone {
		t.Errorf("expected type %q, got %q", msgTranscriptDone, typ)
	}
	m, ok := msg.(transcriptDoneMessage)
	if !ok {
		t.Fatalf("expected transcriptDoneMessage, got %T", msg)
	}
	if m.Transcript != "hello there" {
		t.Errorf("unexpected transcript %q", m.Transcript)
	}
}

func TestDecodeServerMessage_FunctionCallSources(t *testing.T) {
	raw := `{"type":"conversation.item.created","item":{"type":"function_call_output","output":"{\"sources\":[{\"date\":\"2025-03-01\",\"topics\":[\"goals\"],\"relevance\":0.92}]}"}}`
	_, msg, err := decodeServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := msg.(itemCreatedMessage)
	if !ok {
		t.Fatalf("expected itemCreatedMessage, got %T", msg)
	}
	if m.Item.Type != "function_call_output" {
		t.Fatalf("unexpected item type %q", m.Item.Type)
	}
	var out functionOutput
	if err := json.Unmarshal([]byte(m.Item.Output), &out); err != nil {
		t.Fatalf("parsing embedded output: %v", err)
	}
	if len(out.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(out.Sources))
	}
	if out.Sources[0].Date != "2025-03-01" || out.Sources[0].Relevance != 0.92 {
		t.Errorf("unexpected source %+v", out.Sources[0])
	}
}

func TestDecodeServerMessage_Error(t *testing.T) {
	_, msg, err := decodeServerMessage([]byte(`{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"nope"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := msg.(errorMessage)
	if !ok {
		t.Fatalf("expected errorMessage, got %T", msg)
	}
	if m.Error.Message != "nope" || m.Error.Code != "bad" {
		t.Errorf("unexpected server error %+v", m.Error)
	}
}

func TestDecodeServerMessage_UnknownTypeIgnored(t *testing.T) {
	typ, msg, err := decodeServerMessage([]byte(`{"type":"input_audio_buffer.speech_started","audio_start_ms":120}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != nil {
		t.Errorf("expected unknown type to decode to nil, got %T", msg)
	}
	if typ != "input_audio_buffer.speech_started" {
		t.Errorf("unexpected type %q", typ)
	}
}

func TestDecodeServerMessage_MalformedJSON(t *testing.T) {
	if _, _, err := decodeServerMessage([]byte(`{"type":`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestNewSessionUpdate_WireShape(t *testing.T) {
	data, err := json.Marshal(newSessionUpdate("nova"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"type":"session.update","session":{"voice":"nova"}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestNewUserText_WireShape(t *testing.T) {
	data, err := json.Marshal(newUserText("how was my week"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Type string `json:"type"`
		Item struct {
			Type    string `json:"type"`
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"item"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if decoded.Type != msgConversationItemCreate {
		t.Errorf("unexpected type %q", decoded.Type)
	}
	if decoded.Item.Type != "message" || decoded.Item.Role != "user" {
		t.Errorf("unexpected item %+v", decoded.Item)
	}
	if len(decoded.Item.Content) != 1 || decoded.Item.Content[0].Type != "input_text" {
		t.Fatalf("unexpected content %+v", decoded.Item.Content)
	}
	if decoded.Item.Content[0].Text != "how was my week" {
		t.Errorf("unexpected text %q", decoded.Item.Content[0].Text)
	}
}

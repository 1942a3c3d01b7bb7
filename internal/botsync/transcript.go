package botsync

import "github.com/coachflow/livesync/internal/models"

// transcriptStore is the insertion-ordered transcript view: an entry
// list plus an id index mutated in the same critical section (the
// engine's lock), so the two can never drift apart. Entries without an
// id are kept in the list but not indexed, making them append-only.
type transcriptStore struct {
	entries []models.TranscriptEntry
	index   map[string]int
}

func newTranscriptStore() *transcriptStore {
	return &transcriptStore{index: make(map[string]int)}
}

// Replace swaps in a full snapshot, rebuilding the index.
func (s *transcriptStore) Replace(entries []models.TranscriptEntry) {
	s.entries = make([]models.TranscriptEntry, len(entries))
	copy(s.entries, entries)
	s.index = make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID != "" {
			s.index[e.ID] = i
		}
	}
}

// Append adds one entry to the end of the list. An entry with an id
// is indexed at its new position; a repeated id re-points the index
// at the latest occurrence.
func (s *transcriptStore) Append(e models.TranscriptEntry) {
	s.entries = append(s.entries, e)
	if e.ID != "" {
		s.index[e.ID] = len(s.entries) - 1
	}
}

// Update merges a partial patch into the entry with the matching id
// and returns the updated entry. An unknown id is a no-op reporting
// false; the update may simply have raced the snapshot that would
// have indexed it.
func (s *transcriptStore) Update(u models.TranscriptUpdate) (models.TranscriptEntry, bool) {
	i, ok := s.index[u.EntryID]
	if !ok {
		return models.TranscriptEntry{}, false
	}
	e := s.entries[i]
	if u.Text != nil {
		e.Text = *u.Text
	}
	if u.IsFinal != nil {
		e.IsFinal = *u.IsFinal
	}
	if u.Conf != nil {
		e.Confidence = *u.Conf
	}
	if u.EndTime != nil {
		e.EndTime = *u.EndTime
	}
	s.entries[i] = e
	return e, true
}

// Snapshot returns a copy of the ordered entry list.
func (s *transcriptStore) Snapshot() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the number of entries.
func (s *transcriptStore) Len() int {
	return len(s.entries)
}

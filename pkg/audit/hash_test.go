package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	now := time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)
	content, _ := json.Marshal(map[string]any{"key": "value"})

	h1 := computeHash("", "id1", SubtaskCreated, "sub1", "hod1", now, content)
	h2 := computeHash("", "id1", SubtaskCreated, "sub1", "hod1", now, content)
	assert.Equal(t, h1, h2, "same inputs should produce same hash")

	h3 := computeHash("", "id2", SubtaskCreated, "sub1", "hod1", now, content)
	assert.NotEqual(t, h1, h3, "different ID should produce different hash")

	h4 := computeHash("prevhash", "id1", SubtaskCreated, "sub1", "hod1", now, content)
	assert.NotEqual(t, h1, h4, "different prevHash should produce different hash")
}

func TestComputeHashDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// json.Marshal sorts map keys
	content1, _ := json.Marshal(map[string]any{"a": 1, "b": 2})
	content2, _ := json.Marshal(map[string]any{"b": 2, "a": 1})

	h1 := computeHash("", "id", "type", "subject", "actor", now, content1)
	h2 := computeHash("", "id", "type", "subject", "actor", now, content2)
	assert.Equal(t, h1, h2)
}

func chain(t *testing.T, n int) []Event {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := make([]Event, n)
	prev := ""
	for i := range events {
		events[i] = Event{
			ID:        string(rune('a' + i)),
			Type:      SubtaskRework,
			SubjectID: "sub1",
			Actor:     "reviewer",
			Content:   map[string]any{"rework_count": float64(i + 1)},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, Seal(&events[i], prev))
		prev = events[i].Hash
	}
	return events
}

func TestVerifyIntactChain(t *testing.T) {
	assert.NoError(t, Verify(chain(t, 5)))
	assert.NoError(t, Verify(nil))
}

func TestVerifyDetectsEditedContent(t *testing.T) {
	events := chain(t, 4)
	events[2].Content["rework_count"] = float64(99)
	err := Verify(events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 2")
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestVerifyDetectsRemovedEvent(t *testing.T) {
	events := chain(t, 4)
	events = append(events[:1], events[2:]...)
	err := Verify(events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prev_hash mismatch")
}

func TestSealDefaultsContent(t *testing.T) {
	e := Event{ID: "x", Type: TaskCreated, SubjectID: "t1", Timestamp: time.Now()}
	require.NoError(t, Seal(&e, ""))
	assert.NotNil(t, e.Content)
	assert.Len(t, e.Hash, 64)
	assert.Empty(t, e.PrevHash)
}

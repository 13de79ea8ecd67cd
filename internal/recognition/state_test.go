package recognition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
)

var (
	embAsha = []float32{0, 0, 0}
	embRavi = []float32{5, 0, 0}
	embFar  = []float32{0, 9, 0}
)

func testParams() Params {
	return Params{
		ClassID: "class1",
		Date:    "2026-03-03",
		Gallery: []facematch.Entry{
			{Label: "asha", Embedding: embAsha},
			{Label: "ravi", Embedding: embRavi},
		},
		Names:     map[string]string{"asha": "Asha", "ravi": "Ravi"},
		Threshold: 0.5,
	}
}

func det(emb []float32) Detection {
	return Detection{Embedding: emb, BBox: facematch.BBox{0, 0, 10, 10}}
}

func TestActivate(t *testing.T) {
	msgs := DefaultMessages()
	s := Activate(NewSessionState(msgs), testParams(), msgs)

	assert.Equal(t, Active, s.Phase())
	assert.Equal(t, StatusDetecting, s.StatusKey())
	assert.Equal(t, "Detecting faces...", s.Status())
	assert.Equal(t, 2, s.GallerySize())
	assert.False(t, s.Inert())
	assert.Empty(t, s.RecognizedIDs())
}

func TestActivate_SeedsDedupWithPresentStudents(t *testing.T) {
	msgs := DefaultMessages()
	p := testParams()
	p.Present = map[string]bool{"asha": true, "ravi": false}

	s := Activate(NewSessionState(msgs), p, msgs)
	assert.Equal(t, []string{"asha"}, s.RecognizedIDs())

	next, res := Cycle(s, []Detection{det(embAsha)}, msgs, time.Now())
	assert.Empty(t, res.Events, "student saved earlier today must not be announced again")
	require.Len(t, res.Observations, 1)
	assert.True(t, res.Observations[0].AlreadyMarked)
	assert.Equal(t, StatusDetecting, next.StatusKey())
}

func TestActivate_EmptyGalleryIsInert(t *testing.T) {
	msgs := DefaultMessages()
	p := testParams()
	p.Gallery = nil

	s := Activate(NewSessionState(msgs), p, msgs)
	assert.Equal(t, Active, s.Phase())
	assert.True(t, s.Inert())
	assert.Equal(t, "No student faces registered for recognition.", s.Status())

	next, res := Cycle(s, []Detection{det(embAsha)}, msgs, time.Now())
	assert.Empty(t, res.Observations)
	assert.Equal(t, s.Status(), next.Status())
}

func TestCycle_AtMostOneMarkPerStudent(t *testing.T) {
	msgs := DefaultMessages()
	s := Activate(NewSessionState(msgs), testParams(), msgs)

	frames := [][]Detection{
		{det(embAsha)},
		{det(embAsha), det([]float32{0.1, 0, 0})},
		{},
		{det(embRavi), det(embAsha)},
		{det(embFar)},
		{det(embRavi)},
	}

	marks := map[string]int{}
	for _, f := range frames {
		var res CycleResult
		s, res = Cycle(s, f, msgs, time.Now())
		for _, ev := range res.Events {
			marks[ev.StudentID]++
			assert.Equal(t, database.StatusPresent, ev.Status)
			assert.Equal(t, database.MethodFaceScan, ev.Method)
		}
	}

	assert.Equal(t, map[string]int{"asha": 1, "ravi": 1}, marks)
	assert.Equal(t, []string{"asha", "ravi"}, s.RecognizedIDs())
}

func TestCycle_DoesNotMutatePreviousState(t *testing.T) {
	msgs := DefaultMessages()
	before := Activate(NewSessionState(msgs), testParams(), msgs)

	after, res := Cycle(before, []Detection{det(embAsha)}, msgs, time.Now())
	require.Len(t, res.Events, 1)

	assert.False(t, before.Recognized("asha"), "previous state must stay unchanged")
	assert.Equal(t, StatusDetecting, before.StatusKey())
	assert.True(t, after.Recognized("asha"))
	assert.Equal(t, "✓ Recognized: Asha", after.Status())
}

func TestCycle_UnknownAndEmpty(t *testing.T) {
	msgs := DefaultMessages()
	s := Activate(NewSessionState(msgs), testParams(), msgs)

	next, res := Cycle(s, nil, msgs, time.Now())
	assert.Empty(t, res.Observations)
	assert.Equal(t, s.Status(), next.Status(), "zero detections leave the status unchanged")

	next, res = Cycle(s, []Detection{det(embFar)}, msgs, time.Now())
	require.Len(t, res.Observations, 1)
	assert.False(t, res.Observations[0].Known())
	assert.Equal(t, 1, res.Unknown())
	assert.Empty(t, res.Events)
	assert.Empty(t, next.RecognizedIDs())
}

func TestCycle_IdleIsNoop(t *testing.T) {
	msgs := DefaultMessages()
	s := NewSessionState(msgs)
	next, res := Cycle(s, []Detection{det(embAsha)}, msgs, time.Now())
	assert.Equal(t, Idle, next.Phase())
	assert.Empty(t, res.Observations)
}

func TestCycle_EventCarriesConfidence(t *testing.T) {
	msgs := DefaultMessages()
	s := Activate(NewSessionState(msgs), testParams(), msgs)

	_, res := Cycle(s, []Detection{det([]float32{0.25, 0, 0})}, msgs, time.Now())
	require.Len(t, res.Events, 1)
	assert.InDelta(t, 0.25, res.Events[0].Distance, 1e-6)
	assert.InDelta(t, 0.8, res.Events[0].Confidence, 1e-6)
	assert.Equal(t, "Asha", res.Events[0].Name)
}

func TestDeactivateAndFail(t *testing.T) {
	msgs := DefaultMessages()
	s := Activate(NewSessionState(msgs), testParams(), msgs)
	s, _ = Cycle(s, []Detection{det(embAsha)}, msgs, time.Now())

	off := Deactivate(s, msgs)
	assert.Equal(t, Idle, off.Phase())
	assert.Empty(t, off.RecognizedIDs())
	assert.Zero(t, off.GallerySize())
	assert.Equal(t, "Camera is off.", off.Status())

	failed := Fail(s, StatusCameraDenied, assert.AnError, msgs)
	assert.Equal(t, Idle, failed.Phase())
	assert.Equal(t, "Camera access denied. Please check permissions.", failed.Status())
	assert.ErrorIs(t, failed.Err(), assert.AnError)
}

func TestMessagesFrom(t *testing.T) {
	lookup := map[string]string{
		StatusRecognized: "Erkannt: %s",
		StatusIdle:       StatusIdle, // unknown keys come back unchanged
	}
	m := MessagesFrom(func(k string) string {
		if v, ok := lookup[k]; ok {
			return v
		}
		return k
	})
	assert.Equal(t, "Erkannt: Asha", m.text(StatusRecognized, "Asha"))
	assert.Equal(t, DefaultMessages().Idle, m.Idle)

	m.Recognized = "Recognized:"
	assert.Equal(t, "Recognized: Asha", m.text(StatusRecognized, "Asha"))
}

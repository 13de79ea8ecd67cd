package handlers

import (
	"testing"

	"github.com/kozaktomas/smart-attendance/internal/constants"
)

func TestEventBroadcaster_SendAndRemove(t *testing.T) {
	var b EventBroadcaster
	ch1 := b.AddListener()
	ch2 := b.AddListener()

	b.SendEvent(SessionEvent{Type: EventMark})
	if ev := <-ch1; ev.Type != EventMark {
		t.Errorf("expected mark event, got %q", ev.Type)
	}
	if ev := <-ch2; ev.Type != EventMark {
		t.Errorf("expected mark event, got %q", ev.Type)
	}

	b.RemoveListener(ch1)
	if _, ok := <-ch1; ok {
		t.Error("expected removed listener to be closed")
	}
	if b.ListenerCount() != 1 {
		t.Errorf("expected 1 listener, got %d", b.ListenerCount())
	}
}

func TestEventBroadcaster_FullBufferDropsEvents(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()

	for range constants.EventChannelBuffer + 10 {
		b.SendEvent(SessionEvent{Type: EventObservations})
	}
	if len(ch) != constants.EventChannelBuffer {
		t.Errorf("expected buffer to hold %d events, got %d", constants.EventChannelBuffer, len(ch))
	}
}

func TestEventBroadcaster_Close(t *testing.T) {
	var b EventBroadcaster
	ch := b.AddListener()

	b.Close(SessionEvent{Type: EventStopped})
	b.Close(SessionEvent{Type: EventStopped})
	b.SendEvent(SessionEvent{Type: EventMark})

	var got []string
	for ev := range ch {
		got = append(got, ev.Type)
	}
	if len(got) != 1 || got[0] != EventStopped {
		t.Errorf("expected only the final event, got %v", got)
	}

	// Removing after close must not close the channel twice.
	b.RemoveListener(ch)

	late := b.AddListener()
	if _, ok := <-late; ok {
		t.Error("expected a closed channel from a closed broadcaster")
	}
}

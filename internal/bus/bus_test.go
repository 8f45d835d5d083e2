package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Now(KindStatusChanged, "test"))

	select {
	case evt := <-ch:
		if evt.Kind != KindStatusChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindStatusChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("survey.", 10)
	defer unsub()

	b.Publish(Now(KindStatusChanged, nil))
	b.Publish(Now(KindActivated, "survey-1"))

	select {
	case evt := <-ch:
		if evt.Kind != KindActivated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindActivated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Now(KindStatusChanged, nil))

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("submission.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Now(KindQueued, nil))
	// This should be dropped (non-blocking).
	b.Publish(Now(KindSent, nil))

	evt := <-ch
	if evt.Kind != KindQueued {
		t.Errorf("got %q, want %q", evt.Kind, KindQueued)
	}
}

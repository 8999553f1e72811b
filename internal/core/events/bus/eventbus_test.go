package bus

import (
	"errors"
	"testing"
	"time"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	done := make(chan struct{})
	_, err := b.Subscribe("test.event", func(e Event) error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("test.event", "tester", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("handler not called")
	}
}

func TestEventCarriesPayload(t *testing.T) {
	b := New()
	var got any
	_, _ = b.Subscribe("spawn", func(e Event) error {
		got = e.Data()
		if e.Source() != "state" {
			t.Errorf("source = %q", e.Source())
		}
		return nil
	})
	if err := b.Publish(NewEvent("spawn", "state", uint64(7))); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got != uint64(7) {
		t.Fatalf("payload = %v", got)
	}
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	count1 := 0
	count2 := 0
	_, _ = b.SubscribeTopic("t1", "ev", func(e Event) error { count1++; return nil })
	_, _ = b.SubscribeTopic("t2", "ev", func(e Event) error { count2++; return nil })
	_ = b.PublishToTopic("t1", NewEvent("ev", "src", nil))
	if count1 != 1 || count2 != 0 {
		t.Fatalf("topic isolation failed: %d %d", count1, count2)
	}
}

func TestEventTypeIsolation(t *testing.T) {
	b := New()
	calls := 0
	_, _ = b.Subscribe("a", func(e Event) error { calls++; return nil })
	_ = b.Publish(NewEvent("b", "src", nil))
	if calls != 0 {
		t.Fatalf("handler for type a saw type b")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("ev", func(e Event) error { calls++; return nil })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.ID() == "" || sub.EventType() != "ev" || !sub.IsActive() {
		t.Fatalf("bad subscription: %#v", sub)
	}
	if err = b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active after cancel")
	}
	_ = b.Publish(NewEvent("ev", "src", nil))
	if calls != 0 {
		t.Fatalf("cancelled handler called %d times", calls)
	}
	// repeat cancels are safe
	if err = b.Unsubscribe(sub); err != nil {
		t.Fatalf("second unsubscribe: %v", err)
	}
	if err = b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
}

func TestHandlerErrorsJoined(t *testing.T) {
	b := New()
	e1 := errors.New("first")
	e2 := errors.New("second")
	_, _ = b.Subscribe("ev", func(Event) error { return e1 })
	_, _ = b.Subscribe("ev", func(Event) error { return e2 })
	_, _ = b.Subscribe("ev", func(Event) error { return nil })

	err := b.Publish(NewEvent("ev", "src", nil))
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("joined error missing causes: %v", err)
	}
}

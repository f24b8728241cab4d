package eventbus

import (
	"testing"
	"time"
)

func TestBus_PublishAndSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe("conversion.completed")

	bus.Publish("conversion.completed", "abc")

	select {
	case evt := <-ch:
		if evt.Topic != "conversion.completed" {
			t.Errorf("Topic = %q; want %q", evt.Topic, "conversion.completed")
		}
		if evt.Payload != "abc" {
			t.Errorf("Payload = %v; want %q", evt.Payload, "abc")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_MultipleSubscribers_AllReceive(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe("t")
	ch2 := bus.Subscribe("t")

	bus.Publish("t", 42)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Payload != 42 {
				t.Errorf("subscriber %d: Payload = %v; want 42", i, evt.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout", i)
		}
	}
}

func TestBus_DifferentTopics_NoInterference(t *testing.T) {
	bus := New()
	chA := bus.Subscribe("a")
	chB := bus.Subscribe("b")

	bus.Publish("a", "for-a")

	<-chA
	select {
	case evt := <-chB:
		t.Errorf("topic b received %v", evt)
	default:
	}
}

func TestBus_FullBuffer_DropsWithoutBlocking(t *testing.T) {
	bus := NewWithBuffer(2)
	_ = bus.Subscribe("overflow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish("overflow", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked on a full buffer")
	}
	if got := bus.Dropped(); got != 3 {
		t.Fatalf("Dropped() = %d; want 3", got)
	}
}

func TestBus_Close_ClosesSubscribersAndIgnoresPublish(t *testing.T) {
	bus := New()
	ch := bus.Subscribe("t")

	bus.Close()
	bus.Publish("t", 1)
	bus.Close()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Close")
	}
	late := bus.Subscribe("t")
	if _, ok := <-late; ok {
		t.Fatal("subscription after Close should be closed")
	}
}

package relay

import (
	"testing"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	if got := b.ClientCount(); got != 1 {
		t.Fatalf("ClientCount() = %d; want 1", got)
	}

	b.Publish(Event{ID: 7, Operation: "UserMedia", Data: []byte(`{"id":7}`)})
	evt := <-ch
	if evt.ID != 7 || evt.Operation != "UserMedia" || string(evt.Data) != `{"id":7}` {
		t.Fatalf("received %+v; want ID 7 UserMedia", evt)
	}

	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after Unsubscribe")
	}
	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() = %d; want 0", got)
	}
	b.Unsubscribe(id)
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	_, _ = b.Subscribe()

	for i := 0; i < subscriberBufSize+5; i++ {
		b.Publish(Event{ID: uint64(i)})
	}
	if got := b.Dropped(); got != 5 {
		t.Fatalf("Dropped() = %d; want 5", got)
	}
}

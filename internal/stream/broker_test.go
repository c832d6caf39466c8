package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBrokerFanout(t *testing.T) {
	broker := NewBroker()
	id1, ch1 := broker.Subscribe()
	id2, ch2 := broker.Subscribe()
	defer broker.Unsubscribe(id1)
	defer broker.Unsubscribe(id2)

	broker.Publish(Event{Feed: FeedNames, Payload: `{"5":{"name":"Dev"}}`})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Feed != FeedNames {
				t.Fatalf("subscriber %d got feed %q; want %q", i, evt.Feed, FeedNames)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got no event", i)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()
	id, ch := broker.Subscribe()

	broker.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after Unsubscribe")
	}
	if broker.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d; want 0", broker.SubscriberCount())
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	broker := NewBroker()
	id, _ := broker.Subscribe()
	defer broker.Unsubscribe(id)

	// Never reads; publishes past the buffer must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufSize*2; i++ {
			broker.Publish(Event{Feed: FeedNames, Payload: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on slow subscriber")
	}
}

func TestSSEHandlerStreamsEvents(t *testing.T) {
	broker := NewBroker()
	handler := SSEHandler(broker)

	req := httptest.NewRequest("GET", "/api/v1/events?feeds=names", nil)
	rec := httptest.NewRecorder()

	go func() {
		// Give the handler a moment to subscribe before publishing.
		time.Sleep(50 * time.Millisecond)
		broker.Publish(Event{Feed: FeedNames, Payload: `{"1":{"name":"A"}}`})
		broker.Publish(Event{Feed: FeedDiagnostics, Payload: `{"probeReachable":false}`})
		time.Sleep(50 * time.Millisecond)
		for id := int64(1); id <= broker.nextID.Load(); id++ {
			broker.Unsubscribe(id)
		}
	}()

	handler(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: names") {
		t.Fatalf("SSE body = %q; want names event", body)
	}
	if strings.Contains(body, "event: diagnostics") {
		t.Fatalf("SSE body = %q; diagnostics should be filtered out", body)
	}
}

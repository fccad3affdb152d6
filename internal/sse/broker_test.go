package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/slipbox/internal/reconcile"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentDirtied("note_a", true)

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.dirtied") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"filename":"note_a","citations_changed":true`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The first change triggers graph.updated, the second is throttled.
	b.PublishDocumentDirtied("note_a", false)
	b.PublishLinksChanged([]reconcile.LinkChange{{Kind: reconcile.LinkCreated, Source: "note_a", Target: "Foo", Label: "note"}})

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	graphCount := 0
	changeCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "graph.updated") {
				graphCount++
			} else {
				changeCount++
			}
		default:
			break loop
		}
	}

	if changeCount != 2 {
		t.Errorf("change events = %d, want 2", changeCount)
	}
	if graphCount != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graphCount)
	}
}

func TestPublishChange_TrailingGraphUpdate(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentDirtied("note_a", false)
	b.PublishDocumentDirtied("note_b", false)
	b.PublishDocumentDirtied("note_c", false)

	graphCount := 0
	deadline := time.After(400 * time.Millisecond)
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "graph.updated") {
				graphCount++
			}
		case <-deadline:
			break loop
		}
	}
	// one immediate, one at the end of the window for the two throttled changes
	if graphCount != 2 {
		t.Errorf("graph events = %d, want 2", graphCount)
	}
}

func TestBroadcast_SequentialIDs(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "a", Data: map[string]string{}})
	b.Publish(Event{Type: "b", Data: map[string]string{}})

	for _, want := range []string{"id: 1\nevent: a\n", "id: 2\nevent: b\n"} {
		select {
		case msg := <-ch:
			if !strings.HasPrefix(string(msg), want) {
				t.Errorf("message %q, want prefix %q", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishLinksChanged([]reconcile.LinkChange{{Kind: reconcile.LinkDeleted, Source: "note_b", Target: "Foo", Label: "thm"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: links.changed") || !strings.Contains(body, `"kind":"deleted"`) {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeGraphUpdated, Data: map[string]string{}})
	b.PublishDocumentDirtied("note_a", false)
}

func TestCallbacksPublish(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	cb := b.Callbacks()
	cb.OnDocumentDirtied("note_a", false)

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "event: document.dirtied") {
			t.Errorf("unexpected first event %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

// Package sse implements a Server-Sent Events broker that streams
// reconciliation changes to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/slipbox/internal/reconcile"
)

const keepaliveInterval = 30 * time.Second

// Event types.
const (
	TypeDocumentDirtied = "document.dirtied"
	TypeLinksChanged    = "links.changed"
	TypeGraphUpdated    = "graph.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// DirtiedData is the payload of document.dirtied.
type DirtiedData struct {
	Filename         string `json:"filename"`
	CitationsChanged bool   `json:"citations_changed"`
}

// LinksData is the payload of links.changed.
type LinksData struct {
	Changes []reconcile.LinkChange `json:"changes"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients and the graph throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// run owns the client set. Every change is followed by graph.updated: at
// once when the throttle window has passed, otherwise once at the end of the
// window however many changes arrived in it.
func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq       uint64
		lastGraph time.Time
		trailing  *time.Timer
		trailingC <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client, drop
			}
		}
	}
	graphUpdated := func() {
		lastGraph = time.Now()
		broadcast(Event{Type: TypeGraphUpdated, Data: map[string]string{}})
	}

	for {
		select {
		case <-b.stopCh:
			if trailing != nil {
				trailing.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case event := <-b.changeCh:
			broadcast(event)
			if trailingC != nil {
				continue
			}
			if wait := b.graphMin - time.Since(lastGraph); wait > 0 {
				trailing = time.NewTimer(wait)
				trailingC = trailing.C
				continue
			}
			graphUpdated()

		case <-trailingC:
			trailingC = nil
			graphUpdated()

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishDocumentDirtied announces a rescanned document, followed by a
// throttled graph.updated.
func (b *Broker) PublishDocumentDirtied(filename string, citationsChanged bool) {
	b.publishChange(Event{Type: TypeDocumentDirtied, Data: DirtiedData{Filename: filename, CitationsChanged: citationsChanged}})
}

// PublishLinksChanged announces the link changes of one pass, followed by a
// throttled graph.updated.
func (b *Broker) PublishLinksChanged(changes []reconcile.LinkChange) {
	b.publishChange(Event{Type: TypeLinksChanged, Data: LinksData{Changes: changes}})
}

// Callbacks returns engine callbacks that publish to b.
func (b *Broker) Callbacks() reconcile.Callbacks {
	return reconcile.Callbacks{
		OnDocumentDirtied: b.PublishDocumentDirtied,
		OnLinksChanged:    b.PublishLinksChanged,
	}
}

func (b *Broker) publishChange(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- event:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Post change kinds accepted by PublishPostEvent.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

const (
	clientBuffer = 64
	replaySize   = 128
)

// Event represents an SSE event to broadcast. An empty ID is filled with a
// random UUID when the event is sent.
type Event struct {
	ID   string `json:"-"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PostEvent describes a change to one post file.
type PostEvent struct {
	Kind    string
	Path    string
	URL     string
	Version string
}

type frame struct {
	id  string
	raw []byte
}

// subscription asks the loop for a client channel. The loop creates it so the
// buffer can hold the whole replay backlog.
type subscription struct {
	lastID string
	reply  chan chan []byte
}

// Broker fans events out to SSE clients.
//
// A single goroutine owns the client set, the replay ring, and the taxonomy
// throttle; public methods talk to it over channels. Reconnecting clients
// that send Last-Event-ID receive the frames they missed, as long as those
// are still in the ring.
type Broker struct {
	taxonomyMin time.Duration
	heartbeat   time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	postEventCh   chan PostEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithHeartbeat sets the interval of keep-alive comments sent to idle
// clients. Zero disables them.
func WithHeartbeat(d time.Duration) BrokerOption {
	return func(b *Broker) {
		b.heartbeat = d
	}
}

// NewBroker creates a new SSE broker that emits at most one taxonomy.updated
// event per taxonomyThrottle.
func NewBroker(taxonomyThrottle time.Duration, opts ...BrokerOption) *Broker {
	if taxonomyThrottle <= 0 {
		taxonomyThrottle = 2 * time.Second
	}

	b := &Broker{
		taxonomyMin:   taxonomyThrottle,
		heartbeat:     30 * time.Second,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		postEventCh:   make(chan PostEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// format renders one event frame.
func format(event Event) (frame, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return frame{}, err
	}
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	raw := []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", id, event.Type, payload))
	return frame{id: id, raw: raw}, nil
}

// hub is the state owned by the run loop.
type hub struct {
	clients      map[chan []byte]struct{}
	replay       []frame
	lastTaxonomy time.Time
}

func (h *hub) send(ch chan []byte, raw []byte) {
	select {
	case ch <- raw:
	default:
		// Client buffer full; drop rather than block the loop.
	}
}

func (h *hub) broadcast(event Event) {
	f, err := format(event)
	if err != nil {
		return
	}
	h.replay = append(h.replay, f)
	if len(h.replay) > replaySize {
		h.replay = h.replay[len(h.replay)-replaySize:]
	}
	for ch := range h.clients {
		h.send(ch, f.raw)
	}
}

// missed returns the frames after lastID, or nil when lastID is unknown.
func (h *hub) missed(lastID string) []frame {
	for i := len(h.replay) - 1; i >= 0; i-- {
		if h.replay[i].id == lastID {
			return h.replay[i+1:]
		}
	}
	return nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{clients: make(map[chan []byte]struct{})}

	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			var missed []frame
			if sub.lastID != "" {
				missed = h.missed(sub.lastID)
			}
			ch := make(chan []byte, max(clientBuffer, len(missed)))
			for _, f := range missed {
				ch <- f.raw
			}
			h.clients[ch] = struct{}{}
			sub.reply <- ch

		case ch := <-b.unsubscribeCh:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			h.broadcast(event)

		case ev := <-b.postEventCh:
			switch ev.Kind {
			case KindCreated, KindUpdated, KindDeleted:
			default:
				continue
			}
			h.broadcast(Event{Type: "post." + ev.Kind, Data: map[string]string{"path": ev.Path, "url": ev.URL}})

			if now := time.Now(); now.Sub(h.lastTaxonomy) >= b.taxonomyMin {
				h.lastTaxonomy = now
				h.broadcast(Event{Type: "taxonomy.updated", Data: map[string]string{"version": ev.Version}})
			}

		case resp := <-b.countReqCh:
			resp <- len(h.clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. When lastID names a frame
// still held for replay, the frames after it are queued first.
func (b *Broker) Subscribe(lastID string) chan []byte {
	closedCh := func() chan []byte {
		ch := make(chan []byte)
		close(ch)
		return ch
	}
	if b.closed.Load() {
		return closedCh()
	}

	sub := subscription{lastID: lastID, reply: make(chan chan []byte, 1)}
	select {
	case b.subscribeCh <- sub:
		return <-sub.reply
	case <-b.stopped:
		return closedCh()
	}
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

// PublishPostEvent publishes a post change and a throttled taxonomy.updated
// event. Unknown kinds are ignored.
func (b *Broker) PublishPostEvent(ev PostEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.postEventCh <- ev:
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

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.Header.Get("Last-Event-ID"))
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
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

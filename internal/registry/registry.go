// registry.go
// Central event loop. The registry owns the id -> sink map and the id counter;
// every register, lookup and remove is a request served by Run, so no two
// connections ever touch the map at the same time.

package registry

import (
	"context"
	"errors"
	"log/slog"
)

// ID identifies a connected client. IDs start at 1 and are never reused.
type ID int64

// Sink accepts outbound frames for one connection. Send must not block.
type Sink interface {
	Send(frame []byte)
}

// Observer is told about membership changes. It is called from the event loop.
type Observer interface {
	ClientRegistered(connected int)
	ClientRemoved(connected int)
}

// ErrClosed is returned once the event loop has stopped.
var ErrClosed = errors.New("registry: closed")

type registration struct {
	sink  Sink
	reply chan ID
}

type lookupRequest struct {
	id    ID
	reply chan Sink
}

// Registry tracks connected clients.
type Registry struct {
	clients map[ID]Sink
	lastID  ID

	register   chan registration
	unregister chan ID
	lookup     chan lookupRequest
	size       chan chan int
	done       chan struct{}

	observer Observer
	log      *slog.Logger
}

// New returns a registry whose loop is not yet running. observer may be nil.
func New(log *slog.Logger, observer Observer) *Registry {
	return &Registry{
		clients:    make(map[ID]Sink),
		register:   make(chan registration),
		unregister: make(chan ID),
		lookup:     make(chan lookupRequest),
		size:       make(chan chan int),
		done:       make(chan struct{}),
		observer:   observer,
		log:        log,
	}
}

// Run serves requests until ctx is cancelled. It must be called exactly once.
func (r *Registry) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("registry stopped", "connected", len(r.clients))
			return

		case req := <-r.register:
			r.lastID++
			r.clients[r.lastID] = req.sink
			req.reply <- r.lastID

			r.log.Debug("client registered", "client", r.lastID, "connected", len(r.clients))
			if r.observer != nil {
				r.observer.ClientRegistered(len(r.clients))
			}

		case id := <-r.unregister:
			if _, ok := r.clients[id]; !ok {
				continue
			}
			delete(r.clients, id)

			r.log.Debug("client removed", "client", id, "connected", len(r.clients))
			if r.observer != nil {
				r.observer.ClientRemoved(len(r.clients))
			}

		case req := <-r.lookup:
			req.reply <- r.clients[req.id]

		case reply := <-r.size:
			reply <- len(r.clients)
		}
	}
}

// Register stores sink under a fresh id.
func (r *Registry) Register(sink Sink) (ID, error) {
	req := registration{sink: sink, reply: make(chan ID, 1)}

	select {
	case r.register <- req:
		return <-req.reply, nil
	case <-r.done:
		return 0, ErrClosed
	}
}

// Lookup returns the sink registered under id.
func (r *Registry) Lookup(id ID) (Sink, bool) {
	req := lookupRequest{id: id, reply: make(chan Sink, 1)}

	select {
	case r.lookup <- req:
		sink := <-req.reply
		return sink, sink != nil
	case <-r.done:
		return nil, false
	}
}

// Remove deletes id. Unknown ids are ignored.
func (r *Registry) Remove(id ID) {
	select {
	case r.unregister <- id:
	case <-r.done:
	}
}

// Len reports the number of connected clients.
func (r *Registry) Len() int {
	reply := make(chan int, 1)

	select {
	case r.size <- reply:
		return <-reply
	case <-r.done:
		return 0
	}
}

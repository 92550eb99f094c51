// session.go
// One Session per connection. It registers itself on creation, turns inbound
// frames into replies or relays, and removes itself on Close.
// Pairing is one-directional: choosing a peer never changes the peer's state.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pairchat/internal/message"
	"pairchat/internal/metrics"
	"pairchat/internal/registry"
)

// Directory is the part of the registry a session needs.
type Directory interface {
	Register(sink registry.Sink) (registry.ID, error)
	Lookup(id registry.ID) (registry.Sink, bool)
	Remove(id registry.ID)
}

// Session holds the protocol state of one client. Handle must not be called
// concurrently.
type Session struct {
	id     registry.ID
	peer   registry.ID
	paired bool

	dir     Directory
	out     registry.Sink
	metrics *metrics.Metrics
	log     *slog.Logger

	closeOnce sync.Once
}

// New registers out in dir and returns the session owning the new id.
func New(dir Directory, out registry.Sink, log *slog.Logger, m *metrics.Metrics) (*Session, error) {
	id, err := dir.Register(out)
	if err != nil {
		return nil, fmt.Errorf("register client: %w", err)
	}

	return &Session{
		id:      id,
		dir:     dir,
		out:     out,
		metrics: m,
		log:     log.With("client", id),
	}, nil
}

func (s *Session) ID() registry.ID {
	return s.id
}

// Peer returns the chosen peer, if any.
func (s *Session) Peer() (registry.ID, bool) {
	return s.peer, s.paired
}

// Handle processes one inbound frame.
func (s *Session) Handle(frame []byte) {
	msg, err := message.Decode(frame)
	if err != nil {
		s.fail(err)
		return
	}

	s.log.Debug("message received", "type", msg.Type, "size", len(frame))

	switch msg.Type {
	case message.TypeUserChoose:
		s.choose(msg.Value)
	case message.TypeNewMessage:
		s.relay(msg.Value)
	default:
		s.log.Debug("ignoring message of unknown type", "type", msg.Type)
	}
}

func (s *Session) choose(value json.RawMessage) {
	n, err := message.ParseID(value)
	if err != nil {
		s.fail(err)
		return
	}

	id := registry.ID(n)
	if _, ok := s.dir.Lookup(id); !ok {
		s.fail(message.ErrNoClient)
		return
	}

	s.peer, s.paired = id, true
	s.log.Debug("peer chosen", "peer", id)
	s.out.Send(message.Text(message.TypeUserChosen, fmt.Sprintf("Talk to %d", id)))
}

// relay forwards value to the chosen peer. An unpaired session is told so and
// then still goes through the lookup, which fails and resets the pairing.
func (s *Session) relay(value json.RawMessage) {
	if !s.paired {
		s.fail(message.ErrNoPeer)
	}

	var (
		target registry.Sink
		ok     bool
	)
	if s.paired {
		target, ok = s.dir.Lookup(s.peer)
	}
	if !ok {
		s.fail(message.ErrPeerGone)
		s.peer, s.paired = 0, false
		return
	}

	frame, err := message.Forward(value)
	if err != nil {
		s.log.Error("failed to encode relay frame", "err", err)
		return
	}

	s.metrics.MessageRelayed()
	target.Send(frame)
}

func (s *Session) fail(err error) {
	var perr *message.Error
	if !errors.As(err, &perr) {
		s.log.Error("unexpected error", "err", err)
		return
	}

	s.log.Debug("protocol error", "kind", perr.Kind, "reply", perr.Reply)
	s.metrics.ProtocolError(perr.Kind)
	s.out.Send(perr.Frame())
}

// Close removes the session from the registry. Calling it again is a no-op.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.dir.Remove(s.id)
	})
}

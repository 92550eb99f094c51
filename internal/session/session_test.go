package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/metrics"
	"pairchat/internal/registry"
)

type recorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *recorder) Send(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(frame))
}

// take returns and clears the recorded frames.
func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.frames
	r.frames = nil
	return out
}

type client struct {
	*Session
	inbox *recorder
}

func (c client) send(frame string) []string {
	c.Handle([]byte(frame))
	return c.inbox.take()
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go reg.Run(ctx)
	t.Cleanup(cancel)

	return reg
}

func connect(t *testing.T, dir Directory, m *metrics.Metrics) client {
	t.Helper()

	inbox := &recorder{}
	s, err := New(dir, inbox, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	require.NoError(t, err)

	return client{Session: s, inbox: inbox}
}

func TestChoosePeer(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	c2 := connect(t, reg, nil)

	assert.Equal(t, registry.ID(1), c1.ID())
	assert.Equal(t, registry.ID(2), c2.ID())

	got := c1.send(`{"type":"user_choose","value":"2"}`)
	assert.Equal(t, []string{`{"type":"user_chosen","value":"Talk to 2"}`}, got)

	peer, ok := c1.Peer()
	assert.True(t, ok)
	assert.Equal(t, registry.ID(2), peer)
}

func TestChooseNumericValue(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	connect(t, reg, nil)

	got := c1.send(`{"type":"user_choose","value":2}`)
	assert.Equal(t, []string{`{"type":"user_chosen","value":"Talk to 2"}`}, got)
}

func TestPairingIsAsymmetric(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	c2 := connect(t, reg, nil)

	c1.send(`{"type":"user_choose","value":"2"}`)

	_, ok := c2.Peer()
	assert.False(t, ok)

	got := c2.send(`{"type":"new_message","value":"back"}`)
	assert.Equal(t, []string{
		`{"type":"error","value":"No client available"}`,
		`{"type":"error","value":"Client Error : Try a new Client"}`,
	}, got)
	assert.Empty(t, c1.inbox.take())
}

func TestRelay(t *testing.T) {
	reg := newRegistry(t)
	m := metrics.New()
	c1 := connect(t, reg, m)
	c2 := connect(t, reg, m)

	c1.send(`{"type":"user_choose","value":"2"}`)

	got := c1.send(`{"type":"new_message","value":"hi"}`)
	assert.Empty(t, got)
	assert.Equal(t, []string{`{"type":"new_message","value":"hi"}`}, c2.inbox.take())

	c1.send(`{"type":"new_message","value":{"text":"hello","n":3}}`)
	assert.Equal(t, []string{`{"type":"new_message","value":{"text":"hello","n":3}}`}, c2.inbox.take())
}

func TestChooseSelf(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)

	c1.send(`{"type":"user_choose","value":"1"}`)
	got := c1.send(`{"type":"new_message","value":"echo"}`)
	assert.Equal(t, []string{`{"type":"new_message","value":"echo"}`}, got)
}

func TestChooseErrors(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	connect(t, reg, nil)

	got := c1.send(`{"type":"user_choose","value":"99"}`)
	assert.Equal(t, []string{`{"type":"error","value":"Error : No client "}`}, got)

	got = c1.send(`{"type":"user_choose","value":"99999999999999999999"}`)
	assert.Equal(t, []string{`{"type":"error","value":"Error : No client "}`}, got)

	got = c1.send(`{"type":"user_choose","value":1e30}`)
	assert.Equal(t, []string{`{"type":"error","value":"Error : No client "}`}, got)

	got = c1.send(`{"type":"user_choose","value":"abc"}`)
	assert.Equal(t, []string{`{"type":"error","value":"Error: id ; Write another ID"}`}, got)

	_, ok := c1.Peer()
	assert.False(t, ok)
}

func TestFailedChooseKeepsPeer(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	connect(t, reg, nil)

	c1.send(`{"type":"user_choose","value":"2"}`)
	c1.send(`{"type":"user_choose","value":"99"}`)

	peer, ok := c1.Peer()
	assert.True(t, ok)
	assert.Equal(t, registry.ID(2), peer)
}

func TestNewMessageWithoutPeer(t *testing.T) {
	reg := newRegistry(t)
	m := metrics.New()
	c1 := connect(t, reg, m)

	got := c1.send(`{"type":"new_message","value":"x"}`)
	assert.Equal(t, []string{
		`{"type":"error","value":"No client available"}`,
		`{"type":"error","value":"Client Error : Try a new Client"}`,
	}, got)
}

func TestPeerGone(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	c2 := connect(t, reg, nil)

	c1.send(`{"type":"user_choose","value":"2"}`)
	c2.Close()

	got := c1.send(`{"type":"new_message","value":"x"}`)
	assert.Equal(t, []string{`{"type":"error","value":"Client Error : Try a new Client"}`}, got)

	_, ok := c1.Peer()
	assert.False(t, ok)

	got = c1.send(`{"type":"user_choose","value":"2"}`)
	assert.Equal(t, []string{`{"type":"error","value":"Error : No client "}`}, got)
}

func TestReselectionIsIdempotent(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	connect(t, reg, nil)

	first := c1.send(`{"type":"user_choose","value":"2"}`)
	second := c1.send(`{"type":"user_choose","value":"2"}`)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, reg.Len())
}

func TestMalformedInputKeepsSessionUsable(t *testing.T) {
	reg := newRegistry(t)
	m := metrics.New()
	c1 := connect(t, reg, m)
	c2 := connect(t, reg, m)

	bad := []struct{ frame, want string }{
		{"\xff\xfe\xfd", `{"type":"error","value":"The given message can't be decoded, use utf-8"}`},
		{`{"type":`, `{"type":"error","value":"The given message can't be decoded, use json"}`},
		{`[1,2,3]`, `{"type":"error","value":"Error in data"}`},
		{`{"type":"new_message"}`, `{"type":"error","value":"Error in data"}`},
		{`{"type":"","value":"x"}`, `{"type":"error","value":"Error in data"}`},
		{`{"type":"user_choose","value":0}`, `{"type":"error","value":"Error in data"}`},
	}
	for _, tt := range bad {
		assert.Equal(t, []string{tt.want}, c1.send(tt.frame), "frame %q", tt.frame)
	}

	assert.Empty(t, c1.send(`{"type":"shout","value":"ignored"}`))

	c1.send(`{"type":"user_choose","value":"2"}`)
	c1.send(`{"type":"new_message","value":"still here"}`)
	assert.Equal(t, []string{`{"type":"new_message","value":"still here"}`}, c2.inbox.take())
}

func TestCloseIsIdempotent(t *testing.T) {
	reg := newRegistry(t)
	c1 := connect(t, reg, nil)
	c2 := connect(t, reg, nil)

	c1.Close()
	c1.Close()

	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Lookup(c2.ID())
	assert.True(t, ok)
}

func TestNewFailsOnClosedRegistry(t *testing.T) {
	reg := registry.New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := New(reg, &recorder{}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	assert.ErrorIs(t, err, registry.ErrClosed)
}

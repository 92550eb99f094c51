// client.go
// The read goroutine pulls frames off the connection and hands them to the
// session. The write goroutine drains the client's send channel back to the
// connection. Separating read/write keeps a slow reader from stalling the
// clients that relay to it.

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"pairchat/internal/metrics"
	"pairchat/internal/session"
)

// maxFrameSize bounds a single inbound frame on delimited transports.
const maxFrameSize = 1 << 20

// Options are shared by every transport.
type Options struct {
	SendQueue int
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

// frameConn is a connection already split into frames.
type frameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
}

// Client represents a single connection. It is the registry sink for its
// session.
type Client struct {
	socket  frameConn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	metrics *metrics.Metrics
	log     *slog.Logger
}

func newClient(socket frameConn, remote string, opts Options) *Client {
	return &Client{
		socket:  socket,
		send:    make(chan []byte, opts.SendQueue),
		done:    make(chan struct{}),
		metrics: opts.Metrics,
		log:     opts.Log.With("conn", uuid.NewString(), "remote", remote),
	}
}

// Send queues frame for the write goroutine. It never blocks: frames for a
// closed client are discarded and frames beyond the queue size are dropped.
func (c *Client) Send(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- frame:
	default:
		c.metrics.MessageDropped()
		c.log.Warn("send queue full, dropping frame", "size", len(frame))
	}
}

// serve runs both pumps until the connection ends or ctx is cancelled.
func (c *Client) serve(ctx context.Context, sess *session.Session) {
	log := c.log.With("client", sess.ID())
	log.Info("client connected")

	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	go c.write(log)
	c.read(sess, log)
}

func (c *Client) read(sess *session.Session, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while serving connection", "err", r)
		}

		sess.Close()
		c.close()
		log.Info("client disconnected")
	}()

	for {
		frame, err := c.socket.ReadFrame()
		if err != nil {
			if !isClosed(err) {
				log.Warn("failed to read frame", "err", err)
			}

			return
		}

		sess.Handle(frame)
	}
}

func (c *Client) write(log *slog.Logger) {
	for {
		select {
		case frame := <-c.send:
			if err := c.socket.WriteFrame(frame); err != nil {
				if !isClosed(err) {
					log.Warn("failed to write frame", "err", err)
				}

				c.close()

				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)

		if err := c.socket.Close(); err != nil && !isClosed(err) {
			c.log.Debug("failed to close connection", "err", err)
		}
	})
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF)
}

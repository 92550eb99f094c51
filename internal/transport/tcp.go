package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"pairchat/internal/config"
	"pairchat/internal/session"
)

// rawReadSize is the most a single read may carry in raw framing.
const rawReadSize = 1 << 16

// rawConn treats every successful read as one frame. Writes carry no
// delimiter, so a client sees back-to-back replies as concatenated JSON.
type rawConn struct {
	net.Conn
	buf []byte
}

func (c *rawConn) ReadFrame() ([]byte, error) {
	for {
		n, err := c.Conn.Read(c.buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, c.buf[:n])

			return frame, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

func (c *rawConn) WriteFrame(frame []byte) error {
	_, err := c.Conn.Write(frame)
	return err
}

// lineConn splits frames on '\n' and terminates every outbound frame with one.
type lineConn struct {
	net.Conn
	scanner *bufio.Scanner
}

func newLineConn(conn net.Conn) *lineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)

	return &lineConn{Conn: conn, scanner: scanner}
}

func (c *lineConn) ReadFrame() ([]byte, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		frame := make([]byte, len(line))
		copy(frame, line)

		return frame, nil
	}

	if err := c.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}

func (c *lineConn) WriteFrame(frame []byte) error {
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')

	_, err := c.Conn.Write(buf)
	return err
}

// TCPServer accepts stream connections and runs one session per connection.
type TCPServer struct {
	dir     session.Directory
	framing config.Framing
	opts    Options
}

func NewTCPServer(dir session.Directory, framing config.Framing, opts Options) *TCPServer {
	return &TCPServer{dir: dir, framing: framing, opts: opts}
}

// Serve accepts connections on ln until ctx is cancelled, then closes every
// open connection and waits for their goroutines to finish.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	log := s.opts.Log
	log.Info("tcp listener started", "addr", ln.Addr().String(), "framing", s.framing)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("tcp listener stopped")

				return nil
			}

			if errors.Is(err, net.ErrClosed) {
				return err
			}

			log.Error("failed to accept connection", "err", err)
			time.Sleep(10 * time.Millisecond)

			continue
		}

		// Registration happens here, on the accept goroutine, so ids follow
		// connection order.
		c := newClient(s.frameConn(conn), conn.RemoteAddr().String(), s.opts)

		sess, err := session.New(s.dir, c, c.log, s.opts.Metrics)
		if err != nil {
			c.log.Error("failed to register client", "err", err)
			c.close()

			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			c.serve(ctx, sess)
		}()
	}
}

func (s *TCPServer) frameConn(conn net.Conn) frameConn {
	if s.framing == config.FramingLine {
		return newLineConn(conn)
	}

	return &rawConn{Conn: conn, buf: make([]byte, rawReadSize)}
}


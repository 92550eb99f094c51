package transport

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pairchat/internal/session"
)

const closeGracePeriod = time.Second

// wsConn maps one WebSocket message to one frame. Replies go out as text.
type wsConn struct {
	*websocket.Conn
}

func (c wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
			return nil, io.EOF
		}

		return nil, err
	}

	return data, nil
}

func (c wsConn) WriteFrame(frame []byte) error {
	return c.WriteMessage(websocket.TextMessage, frame)
}

func (c wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !isClosed(err) {
		_ = c.Conn.Close()
		return err
	}

	return c.Conn.Close()
}

// WebSocketHandler upgrades HTTP requests and runs one session per socket.
// The connection lives until the client leaves or the request context ends,
// so the http.Server must set BaseContext for shutdown to reach it.
type WebSocketHandler struct {
	dir      session.Directory
	upgrader websocket.Upgrader
	opts     Options
	wg       sync.WaitGroup
}

// NewWebSocketHandler allows any Origin when origins is empty.
func NewWebSocketHandler(dir session.Directory, origins []string, opts Options) *WebSocketHandler {
	return &WebSocketHandler{
		dir: dir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}

				return slices.Contains(origins, r.Header.Get("Origin"))
			},
		},
		opts: opts,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.wg.Add(1)
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.opts.Log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn.SetReadLimit(maxFrameSize)

	c := newClient(wsConn{Conn: conn}, r.RemoteAddr, h.opts)

	sess, err := session.New(h.dir, c, c.log, h.opts.Metrics)
	if err != nil {
		c.log.Error("failed to register client", "err", err)
		c.close()

		return
	}

	c.serve(r.Context(), sess)
}

// Wait blocks until every connection served by h has ended and left the
// registry. http.Server.Shutdown does not track hijacked connections.
func (h *WebSocketHandler) Wait() {
	h.wg.Wait()
}

package streaming

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riptide/core/logging"
)

const (
	pingPeriod = 54 * time.Second
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketUpgrader upgrades an HTTP request to a streaming
// Connection, reusing the teacher's ping/pong keepalive interval and
// write-deadline pattern from ui/transports/websocket.
type WebSocketUpgrader struct {
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewWebSocketUpgrader builds an upgrader. allowedOrigins empty means
// accept any origin.
func NewWebSocketUpgrader(bufferSize int, allowedOrigins []string, logger logging.Logger) *WebSocketUpgrader {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &WebSocketUpgrader{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// Upgrade upgrades the request and starts a write pump delivering c's
// frames until the connection closes or the client goes away. It
// blocks; callers typically invoke it in the request's handler
// goroutine.
func (u *WebSocketUpgrader) Upgrade(w http.ResponseWriter, r *http.Request, c *Connection) error {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go u.discardInbound(conn)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.Frames():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			if err := conn.WriteJSON(frame); err != nil {
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// discardInbound drains and discards client messages: RipTide's
// streaming path is unidirectional (batch results only), but the
// connection must still be read from or the client's pong frames
// never reach the read deadline reset above.
func (u *WebSocketUpgrader) discardInbound(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

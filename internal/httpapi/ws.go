package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andy6609/roomchat/internal/chat"
)

const writeWait = 10 * time.Second

// wsConn adapts a WebSocket to chat.Conn: one text frame is one record. A
// frame may end in "\n" or "\r\n" but must not contain another line break.
type wsConn struct {
	conn *websocket.Conn
	addr string
}

func newWSConn(conn *websocket.Conn, addr string, maxLineBytes int) *wsConn {
	if maxLineBytes <= 0 {
		maxLineBytes = chat.DefaultMaxLineBytes
	}
	conn.SetReadLimit(int64(maxLineBytes))
	return &wsConn{conn: conn, addr: addr}
}

func (c *wsConn) ReadRecord() (string, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt != websocket.TextMessage {
			continue
		}
		line := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
		if strings.ContainsAny(line, "\r\n") {
			return "", chat.ErrRecordBreak
		}
		return line, nil
	}
}

func (c *wsConn) WriteRecord(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func wsHandler(srv *chat.Server, origins *originPolicy, maxLineBytes int, logger *slog.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.check,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		srv.ServeConn(newWSConn(conn, r.RemoteAddr, maxLineBytes))
	}
}

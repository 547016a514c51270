package chat

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

func NewClient(conn Conn, outBuffer int) *Client {
	if outBuffer <= 0 {
		outBuffer = 32
	}
	return &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Addr: conn.RemoteAddr(),
		Out:  make(chan string, outBuffer),
	}
}

// HandleSession drives one connection: nickname handshake, then the
// read/classify/dispatch loop until /quit or a transport error.
func HandleSession(c *Client, reg *Registry) {
	defer func() {
		_ = c.Conn.Close()
	}()

	StartOutboundWriter(c.Conn, c.Out)

	reg.logger.Info("client connected", "id", c.ID, "addr", c.Addr)
	reg.record(fmt.Sprintf("New connection: %s.", c.Addr))

	// The first record is the nickname, taken verbatim.
	nickname, err := c.Conn.ReadRecord()
	if err == nil {
		err = reg.Register(c, nickname)
	}
	if err != nil {
		// Never registered, so the registry will not close Out for us.
		close(c.Out)
		reg.logger.Info("handshake failed", "id", c.ID, "addr", c.Addr, "error", err)
		reg.record(fmt.Sprintf("Client %s disconnected before choosing a nickname.", c.Addr))
		return
	}

	reason := "quit"
	defer func() {
		reg.Unregister(c, reason)
	}()

	// Main input loop.
	for {
		line, err := c.Conn.ReadRecord()
		if err != nil {
			reason = "connection lost"
			if !errors.Is(err, io.EOF) {
				reg.logger.Debug("read failed", "id", c.ID, "error", err)
			}
			return
		}

		cmd := ParseCommand(line)
		switch cmd.Kind {
		case CommandQuit:
			return
		case CommandChat:
			// Dropped by the registry when the client has no room.
			reg.Say(c, cmd.Text)
		default:
			reg.Dispatch(c, cmd)
		}
	}
}

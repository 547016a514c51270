package chat

import "strings"

// StartOutboundWriter drains out into conn, one record per line. On a write
// failure the connection is closed, which ends the owning session's read
// loop, and the queue is drained until the registry closes it.
func StartOutboundWriter(conn Conn, out <-chan string) {
	go func() {
		for msg := range out {
			if err := writeLines(conn, msg); err != nil {
				_ = conn.Close()
				for range out {
				}
				return
			}
		}
	}()
}

func writeLines(conn Conn, msg string) error {
	for _, line := range strings.Split(msg, "\n") {
		if err := conn.WriteRecord(line); err != nil {
			return err
		}
	}
	return nil
}

package chat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

const DefaultMaxLineBytes = 4096

// lineConn frames records on a byte stream: each record is terminated by
// '\n', and an optional '\r' before it is dropped.
type lineConn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	max    int
}

func NewLineConn(conn net.Conn, maxLineBytes int) Conn {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &lineConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		max:    maxLineBytes,
	}
}

func (l *lineConn) ReadRecord() (string, error) {
	var buf []byte
	for {
		chunk, err := l.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		// The limit applies to the record without its terminator.
		if len(trimRecord(string(buf))) > l.max {
			return "", ErrRecordTooLong
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == nil {
			return trimRecord(string(buf)), nil
		}
		if err == io.EOF && len(buf) > 0 {
			// last line without newline
			return trimRecord(string(buf)), nil
		}
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("read: %w", err)
	}
}

func (l *lineConn) WriteRecord(line string) error {
	if _, err := l.writer.WriteString(line + "\n"); err != nil {
		return err
	}
	return l.writer.Flush()
}

func (l *lineConn) RemoteAddr() string {
	return l.conn.RemoteAddr().String()
}

func (l *lineConn) Close() error {
	return l.conn.Close()
}

func trimRecord(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

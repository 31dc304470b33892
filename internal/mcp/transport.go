package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize is the largest single line the server accepts (4MB), big
// enough for a full resolveBatch request.
const MaxMessageSize = 4 * 1024 * 1024

// errParse marks a line that was read but could not be decoded.
type errParse struct{ err error }

func (e errParse) Error() string { return "error parsing JSON-RPC message: " + e.err.Error() }
func (e errParse) Unwrap() error { return e.err }

// errTooLarge marks a line longer than MaxMessageSize. The line has been
// consumed, so reading can continue with the next one.
type errTooLarge struct{ size int }

func (e errTooLarge) Error() string {
	return fmt.Sprintf("message of %d+ bytes exceeds the %d byte limit", e.size, MaxMessageSize)
}

// readMessage reads one newline-delimited JSON-RPC message.
func (s *MCPServer) readMessage() (*MCPMessage, error) {
	if s.reader == nil {
		s.reader = bufio.NewReaderSize(s.stdin, 64*1024)
	}

	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		s.logger.Debug("Received message", "raw", string(line))

		var msg MCPMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, errParse{err}
		}
		return &msg, nil
	}
}

// readLine returns the next line without its terminator. An oversized line
// is read to its end and dropped.
func (s *MCPServer) readLine() ([]byte, error) {
	var line []byte
	size := 0
	for {
		chunk, err := s.reader.ReadSlice('\n')
		size += len(chunk)
		if size <= MaxMessageSize+2 {
			line = append(line, chunk...)
		} else {
			line = nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && size == 0 {
			return nil, io.EOF
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading from stdin: %w", err)
		}
		line = bytes.TrimRight(line, "\r\n")
		if size > MaxMessageSize+2 || len(line) > MaxMessageSize {
			return nil, errTooLarge{size: size}
		}
		return line, nil
	}
}

// writeMessage writes one JSON-RPC message followed by a newline.
func (s *MCPServer) writeMessage(msg *MCPMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling JSON-RPC message: %w", err)
	}

	s.logger.Debug("Sending message", "raw", string(data))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := fmt.Fprintf(s.stdout, "%s\n", data); err != nil {
		return fmt.Errorf("error writing to stdout: %w", err)
	}
	return nil
}

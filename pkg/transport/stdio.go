package transport

import (
	"bufio"
	"io"
	"os"

	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/auth"
)

// StdioTransport reads newline-delimited JSON-RPC frames from stdin
// and writes responses to stdout, one frame per line. It tracks brace
// depth (skipping braces inside string literals) rather than trusting
// the client to send one frame per Write, since subprocess pipes can
// arrive split across reads.
type StdioTransport struct {
	reader *bufio.Reader
	writer *bufio.Writer
}

// NewStdioTransport builds a transport over os.Stdin/os.Stdout.
func NewStdioTransport() *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReader(os.Stdin),
		writer: bufio.NewWriter(os.Stdout),
	}
}

// Serve reads frames until EOF, dispatching each through handler and
// writing back whatever handler returns (nothing, for a notification).
func (t *StdioTransport) Serve(handler Handler) error {
	for {
		frame, err := t.readFrame()
		if err != nil {
			if err == io.EOF {
				logger.Info("stdio transport: client disconnected")
				return nil
			}
			return err
		}

		resp := handler(frame, auth.NewAuthRequest())
		if resp == nil {
			continue
		}
		if err := t.writeFrame(resp); err != nil {
			return err
		}
	}
}

// readFrame reads one complete top-level JSON value from stdin,
// tracking brace/bracket depth and string literals so embedded braces
// in text content don't terminate the frame early.
func (t *StdioTransport) readFrame() ([]byte, error) {
	var buf []byte
	var depth int
	var started bool
	var inString bool
	var escapeNext bool

	for {
		b, err := t.reader.ReadByte()
		if err != nil {
			return nil, err
		}

		if !started {
			if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
				continue
			}
			started = true
		}

		buf = append(buf, b)

		if !escapeNext && b == '"' {
			inString = !inString
		}
		if inString && b == '\\' {
			escapeNext = !escapeNext
		} else {
			escapeNext = false
		}

		if inString {
			continue
		}
		switch b {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return buf, nil
			}
		}
	}
}

func (t *StdioTransport) writeFrame(data []byte) error {
	data = append(append([]byte{}, data...), '\n')
	if _, err := t.writer.Write(data); err != nil {
		return err
	}
	return t.writer.Flush()
}

package transport

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioTransportReadFrameHandlesBracesInStrings(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"arguments":{"message":"a { b } c"}}}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`
	tr := &StdioTransport{reader: bufio.NewReader(strings.NewReader(input))}

	frame, err := tr.readFrame()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"id":1`)

	frame, err = tr.readFrame()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"id":2`)
}

func TestStdioTransportWriteFrameAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	tr := &StdioTransport{writer: bufio.NewWriter(&buf)}

	require.NoError(t, tr.writeFrame([]byte(`{"ok":true}`)))
	assert.Equal(t, "{\"ok\":true}\n", buf.String())
}

package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delgado-dev/chordvault/chordid"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	msg := Message{
		Type:   TypeBackup,
		Sender: PeerRef{Address: "10.0.0.1:3000", GUID: chordid.ID(42)},
		Body:   "fileId::1024::10.0.0.1:3000:42::7::2",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestWriteReadMessageEmptyBody(t *testing.T) {
	msg := Message{Type: TypePing, Sender: PeerRef{Address: "", GUID: 0}, Body: ""}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestReadMessageTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Message{Type: TypeGet, Sender: PeerRef{Address: "x"}, Body: "y"}))

	truncated := bytes.NewReader(buf.Bytes()[:3])
	_, err := ReadMessage(truncated)
	assert.Error(t, err)
}

func TestMessageStringIncludesTypeAndSender(t *testing.T) {
	msg := Message{Type: TypeAck, Sender: PeerRef{Address: "10.0.0.1:3000"}, Body: ""}
	assert.Contains(t, msg.String(), "ACK")
	assert.Contains(t, msg.String(), "10.0.0.1:3000")
}

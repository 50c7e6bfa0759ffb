package ipc

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic:     ProtocolMagic,
		Version:   ProtocolVersion,
		Flags:     FlagJSON,
		Type:      MsgStatusRequest,
		RequestID: 42,
		Length:    128,
	}

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))
	require.Equal(t, HeaderSize, buf.Len())

	got, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, *got)
}

func TestMessageRoundTrip(t *testing.T) {
	payload, err := Encode(&HintEventRequest{Kind: "VR_MODE", Data: 1})
	require.NoError(t, err)

	msg := NewMessage(MsgHintEvent, 7, payload)

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgHintEvent, got.Header.Type)
	assert.Equal(t, uint32(7), got.Header.RequestID)

	var req HintEventRequest
	require.NoError(t, Decode(got.Payload, &req))
	assert.Equal(t, "VR_MODE", req.Kind)
	assert.Equal(t, int32(1), req.Data)
}

func TestEmptyPayloadMessage(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)
	assert.Equal(t, uint32(0), msg.Header.Length)

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, got.Header.Type)
	assert.Empty(t, got.Payload)
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	h := Header{Magic: 0xDEADBEEF, Version: ProtocolVersion}

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	_, err := ReadHeader(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid magic")
}

func TestReadHeaderRejectsFutureVersion(t *testing.T) {
	h := Header{Magic: ProtocolMagic, Version: ProtocolVersion + 1}

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	_, err := ReadHeader(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported protocol version")
}

func TestReadHeaderRejectsOversizedPayload(t *testing.T) {
	h := Header{Magic: ProtocolMagic, Version: ProtocolVersion, Length: MaxPayload + 1}

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	_, err := ReadHeader(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload too large")
}

func TestReadHeaderShortRead(t *testing.T) {
	buf := bytes.NewReader(make([]byte, HeaderSize/2))

	_, err := ReadHeader(buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	msg := NewMessage(MsgDumpResponse, 3, []byte("0123456789"))

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))
	truncated := buf.Bytes()[:buf.Len()-4]

	_, err := ReadMessage(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestErrorMessage(t *testing.T) {
	msg := NewErrorMessage(9, ErrInvalidRequest, "bad request")
	assert.Equal(t, MsgError, msg.Header.Type)
	assert.Equal(t, uint32(9), msg.Header.RequestID)

	var resp ErrorResponse
	require.NoError(t, Decode(msg.Payload, &resp))
	assert.Equal(t, ErrInvalidRequest, resp.Code)
	assert.Equal(t, "bad request", resp.Message)
}

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		[]byte("hello, portal"),
		make([]byte, 4096),
	}
	for _, payload := range payloads {
		msg := EncodeMessage(MessageData, payload, 42)
		require.Equal(t, HeaderSize+len(payload), len(msg))

		h, err := ParseHeader(msg)
		require.NoError(t, err)
		assert.Equal(t, Magic, h.Magic)
		assert.Equal(t, Version, h.Version)
		assert.Equal(t, MessageData, h.Type)
		assert.Equal(t, uint32(len(payload)), h.Size)
		assert.Equal(t, uint64(42), h.Sequence)

		require.NoError(t, h.Validate(0))
		require.NoError(t, h.VerifyChecksum(msg[HeaderSize:]))
	}
}

func TestParseHeaderTruncated(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestValidateRejectsBadMagic(t *testing.T) {
	h := NewHeader(MessageData, []byte("p"), 1)
	h.Magic = 0xDEADBEEF
	assert.ErrorIs(t, h.Validate(0), ErrProtocol)
}

func TestValidateRejectsBadVersion(t *testing.T) {
	h := NewHeader(MessageData, []byte("p"), 1)
	h.Version = Version + 1
	assert.ErrorIs(t, h.Validate(0), ErrProtocol)
}

func TestValidateRejectsOversizedPayload(t *testing.T) {
	h := NewHeader(MessageData, nil, 1)
	h.Size = 2048
	assert.ErrorIs(t, h.Validate(1024), ErrMessageTooLarge)

	h.Size = DefaultMaxMessageSize + 1
	assert.ErrorIs(t, h.Validate(0), ErrMessageTooLarge)
}

func TestChecksumSensitivity(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	msg := EncodeMessage(MessageData, payload, 7)
	h, err := ParseHeader(msg)
	require.NoError(t, err)

	// Flipping any single payload byte must break verification.
	for i := range payload {
		corrupted := make([]byte, len(payload))
		copy(corrupted, msg[HeaderSize:])
		corrupted[i] ^= 0x01
		assert.ErrorIs(t, h.VerifyChecksum(corrupted), ErrDataCorruption, "byte %d", i)
	}
}

func TestHeaderTimestampPopulated(t *testing.T) {
	h := NewHeader(MessageHeartbeat, nil, 0)
	assert.NotZero(t, h.Timestamp)
}

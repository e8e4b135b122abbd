// Package wire implements the fixed-layout message framing shared by every
// portal implementation regardless of language. A message on the wire is a
// 32-byte header immediately followed by the payload; the receiver needs no
// external metadata to delimit or validate it.
package wire

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Magic is the protocol constant every peer must present ("TPTU" little-endian).
const Magic uint32 = 0x55545054

// Version is the current wire format version.
const Version uint8 = 1

// HeaderSize is the fixed on-wire header length in bytes.
const HeaderSize = 32

// DefaultMaxMessageSize bounds the payload length accepted by Validate
// unless the caller configures a different limit (64 MiB).
const DefaultMaxMessageSize = 64 * 1024 * 1024

// Message types.
const (
	MessageData      uint8 = 1
	MessageHeartbeat uint8 = 2
	MessageAck       uint8 = 3
	MessageError     uint8 = 4
)

// Header layout (32 bytes, little-endian):
//
//	Byte  0-3:   Magic (0x55545054)
//	Byte  4:     Version
//	Byte  5:     Message Type
//	Byte  6-7:   Flags (reserved)
//	Byte  8-11:  Payload Size
//	Byte  12-19: Sequence Number
//	Byte  20-27: Timestamp (milliseconds since epoch)
//	Byte  28-31: Checksum (CRC32 of payload)
type Header struct {
	Magic     uint32
	Version   uint8
	Type      uint8
	Flags     uint16
	Size      uint32
	Sequence  uint64
	Timestamp uint64
	Checksum  uint32
}

// NewHeader builds a header for the given payload, computing size, timestamp
// and checksum. Sequence numbers are assigned by the sending transport, not
// here.
func NewHeader(msgType uint8, payload []byte, seq uint64) Header {
	return Header{
		Magic:     Magic,
		Version:   Version,
		Type:      msgType,
		Size:      uint32(len(payload)),
		Sequence:  seq,
		Timestamp: uint64(time.Now().UnixMilli()),
		Checksum:  Checksum(payload),
	}
}

// Marshal serializes the header to its 32-byte wire form.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	h.MarshalTo(buf)
	return buf
}

// MarshalTo writes the header into buf, which must hold at least HeaderSize
// bytes.
func (h Header) MarshalTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Type
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.Size)
	binary.LittleEndian.PutUint64(buf[12:20], h.Sequence)
	binary.LittleEndian.PutUint64(buf[20:28], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[28:32], h.Checksum)
}

// ParseHeader deserializes a header from wire bytes. It performs no
// validation beyond the length check; call Validate afterwards.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header truncated: %d bytes (need %d)", ErrProtocol, len(data), HeaderSize)
	}
	return Header{
		Magic:     binary.LittleEndian.Uint32(data[0:4]),
		Version:   data[4],
		Type:      data[5],
		Flags:     binary.LittleEndian.Uint16(data[6:8]),
		Size:      binary.LittleEndian.Uint32(data[8:12]),
		Sequence:  binary.LittleEndian.Uint64(data[12:20]),
		Timestamp: binary.LittleEndian.Uint64(data[20:28]),
		Checksum:  binary.LittleEndian.Uint32(data[28:32]),
	}, nil
}

// Validate rejects headers whose magic or version do not match the
// negotiated constants, or whose payload size exceeds maxSize.
// Pass maxSize 0 for DefaultMaxMessageSize.
func (h Header) Validate(maxSize uint32) error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: bad magic 0x%08x", ErrProtocol, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: unsupported version %d (want %d)", ErrProtocol, h.Version, Version)
	}
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	if h.Size > maxSize {
		return fmt.Errorf("%w: payload %d bytes exceeds limit %d", ErrMessageTooLarge, h.Size, maxSize)
	}
	return nil
}

// VerifyChecksum recomputes the payload CRC32 and fails on mismatch.
func (h Header) VerifyChecksum(payload []byte) error {
	if got := Checksum(payload); got != h.Checksum {
		return fmt.Errorf("%w: computed 0x%08x, header 0x%08x", ErrDataCorruption, got, h.Checksum)
	}
	return nil
}

// EncodeMessage frames a payload into a contiguous header+payload buffer.
func EncodeMessage(msgType uint8, payload []byte, seq uint64) []byte {
	h := NewHeader(msgType, payload, seq)
	buf := make([]byte, HeaderSize+len(payload))
	h.MarshalTo(buf)
	copy(buf[HeaderSize:], payload)
	return buf
}

// TotalSize returns the on-wire size of the message this header describes.
func (h Header) TotalSize() uint64 {
	return HeaderSize + uint64(h.Size)
}

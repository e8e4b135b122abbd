package wire

import "errors"

// Sentinel errors shared across packages.
var (
	ErrProtocol        = errors.New("protocol violation")
	ErrDataCorruption  = errors.New("payload checksum mismatch")
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
)

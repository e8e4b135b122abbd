package transport

import (
	"fmt"
	"time"
)

// NetworkTransport is the interface boundary for the network fallback. The
// portal selects it for non-local destinations, but no wire implementation
// exists yet: every operation reports the transport as unavailable so the
// caller can surface a typed error rather than hang.
type NetworkTransport struct{}

// NewNetworkTransport returns the placeholder network transport.
func NewNetworkTransport() *NetworkTransport {
	return &NetworkTransport{}
}

// Send is unimplemented.
func (t *NetworkTransport) Send(payload []byte, endpoint string, timeout time.Duration) error {
	return fmt.Errorf("%w: network transport to %q not implemented", ErrTransportNotAvailable, endpoint)
}

// Receive is unimplemented.
func (t *NetworkTransport) Receive(endpoint string, timeout time.Duration) ([]byte, error) {
	return nil, fmt.Errorf("%w: network transport from %q not implemented", ErrTransportNotAvailable, endpoint)
}

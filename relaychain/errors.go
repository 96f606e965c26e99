package relaychain

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks operations the remote-backed client is
// structurally unable to answer (number-addressed lookups, body
// fetches, proof generation). It is a distinct condition from a
// transport failure so callers can pick a fallback path instead of
// treating the failure as transient
var ErrUnsupported = errors.New("operation not supported by the remote-backed client")

// TransportError wraps a failed remote call. It is never produced for
// contract violations, only for failures of the call itself
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay chain call %s failed: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(method string, err error) error {
	return &TransportError{Method: method, Err: err}
}

// IsUnsupported reports whether err is a structural unsupported-operation error
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

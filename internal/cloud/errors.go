package cloud

import "fmt"

// TransportError wraps a failure to reach the remote service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "cloud transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is returned when the remote service answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("cloud http %d: %s", e.StatusCode, e.Body)
}

// ProtocolError is returned when a 2xx response body is not a command list.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return "cloud: invalid response: " + e.Err.Error() }
func (e *ProtocolError) Unwrap() error { return e.Err }

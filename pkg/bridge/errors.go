package bridge

import "fmt"

// SetupError reports a signaling operation the session cannot honor in its
// current state.
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string {
	return "setup: " + e.Reason
}

// ConnectionError reports a transport-level failure inside a session.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConnectionClosedError reports an operation against a session that has
// already torn down.
type ConnectionClosedError struct {
	Cause error
}

func (e *ConnectionClosedError) Error() string {
	if e.Cause != nil {
		return "connection closed: " + e.Cause.Error()
	}
	return "connection closed"
}

func (e *ConnectionClosedError) Unwrap() error {
	return e.Cause
}

// IntercomUnsupportedError reports a session whose negotiated audio leg
// cannot carry reverse audio.
type IntercomUnsupportedError struct {
	Reason string
}

func (e *IntercomUnsupportedError) Error() string {
	return "intercom unsupported: " + e.Reason
}

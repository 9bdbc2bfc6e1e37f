// Package sink carries bridged media to the downstream consumer. The wire
// protocol the consumer speaks is owned by Sink implementations; the
// bridge only pushes tagged packets at them.
package sink

import (
	"context"
	"net"
)

// Frame is one forwarded unit: an RTP or RTCP packet tagged with the
// channel it belongs to.
type Frame struct {
	ChannelID string
	Feedback  bool
	Payload   []byte
}

// Sink consumes bridged media.
type Sink interface {
	// HandlePlayback runs the downstream protocol loop until the consumer
	// goes away or ctx ends.
	HandlePlayback(ctx context.Context) error

	// SendTrack forwards one packet. Payloads arrive unmodified and in
	// arrival order; feedback marks RTCP. The payload buffer is reused
	// once the call returns, implementations that queue must copy.
	SendTrack(channelID string, payload []byte, feedback bool) error

	Close() error
}

// Factory builds the sink once the consumer connection and the negotiated
// description are known.
type Factory interface {
	NewSink(conn net.Conn, desc string) (Sink, error)
}

// Package signaling defines the contracts between the bridge and the
// application-provided signaling channel. The channel owns the remote
// transport (WebSocket, cloud push, whatever the integration uses); the
// bridge only ever sees these interfaces.
package signaling

import (
	"context"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/media"
)

// Candidate is a trickled ICE candidate in JSON shape.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// CandidateFunc delivers one locally gathered candidate to the remote
// peer. Passing a nil CandidateFunc to CreateLocalDescription selects
// non-trickle gathering.
type CandidateFunc func(Candidate)

// Setup carries the transceiver directions the application wants for a
// session. The zero value lets the bridge apply its defaults. ICERestart
// only affects offers created after the peer session exists.
type Setup struct {
	Audio      media.Direction
	Video      media.Direction
	ICERestart bool
}

// Session is the bridge-side endpoint the channel drives while
// negotiating.
type Session interface {
	// CreateLocalDescription produces a local offer or answer. With a nil
	// sendCandidate it waits for candidate gathering to complete and
	// returns the full description; otherwise it returns immediately and
	// trickles candidates through the callback.
	CreateLocalDescription(ctx context.Context, kind media.DescriptionType, setup *Setup, sendCandidate CandidateFunc) (*media.Description, error)

	// SetRemoteDescription applies the remote peer's description.
	SetRemoteDescription(ctx context.Context, desc *media.Description, setup *Setup) error

	// AddICECandidate adds one remote candidate.
	AddICECandidate(ctx context.Context, cand Candidate) error
}

// PlaybackState reports which directions are live toward the remote peer.
type PlaybackState struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// SessionControl is the channel-owned handle for a started session.
type SessionControl interface {
	SetPlayback(ctx context.Context, state PlaybackState) error
	EndSession(ctx context.Context) error
}

// Channel starts signaling sessions against the remote peer.
type Channel interface {
	StartSession(ctx context.Context, sess Session) (SessionControl, error)
}

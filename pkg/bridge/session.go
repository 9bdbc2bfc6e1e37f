package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/media"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/signaling"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

type sessionState int

const (
	stateCreated sessionState = iota
	stateNegotiating
	stateNegotiated
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateNegotiating:
		return "negotiating"
	case stateNegotiated:
		return "negotiated"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

func (b *Bridge) setState(next sessionState) {
	b.mu.Lock()
	prev := b.state
	if prev == stateClosed && next != stateClosed {
		b.mu.Unlock()
		return
	}
	b.state = next
	b.mu.Unlock()
	if prev != next {
		b.logger.Infof("session state: %s => %s", prev, next)
	}
}

func (b *Bridge) State() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.String()
}

// CreateLocalDescription produces the local offer or answer. With a nil
// sendCandidate it waits for candidate gathering and returns the complete
// description; with one it returns immediately and trickles.
func (b *Bridge) CreateLocalDescription(ctx context.Context, kind media.DescriptionType, setup *signaling.Setup, sendCandidate signaling.CandidateFunc) (*media.Description, error) {
	if b.isClosed() {
		return nil, &ConnectionClosedError{}
	}

	pc, err := b.ensurePeer(setup)
	if err != nil {
		return nil, err
	}

	var sd webrtc.SessionDescription
	switch kind {
	case media.DescriptionTypeOffer:
		b.setState(stateNegotiating)
		var opts *webrtc.OfferOptions
		if setup != nil && setup.ICERestart {
			opts = &webrtc.OfferOptions{ICERestart: true}
		}
		sd, err = pc.CreateOffer(opts)
	case media.DescriptionTypeAnswer:
		if pc.RemoteDescription() == nil {
			return nil, &SetupError{Reason: "answer requested before a remote offer was applied"}
		}
		sd, err = pc.CreateAnswer(nil)
	default:
		return nil, &SetupError{Reason: fmt.Sprintf("cannot create local description of type %q", kind)}
	}
	if err != nil {
		return nil, &ConnectionError{Op: fmt.Sprintf("create %s", kind), Err: err}
	}

	if sendCandidate != nil {
		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				return
			}
			init := c.ToJSON()
			sendCandidate(signaling.Candidate{
				Candidate:     init.Candidate,
				SDPMid:        init.SDPMid,
				SDPMLineIndex: init.SDPMLineIndex,
			})
		})
		if err := pc.SetLocalDescription(sd); err != nil {
			return nil, &ConnectionError{Op: "set local description", Err: err}
		}
	} else {
		gatherComplete := webrtc.GatheringCompletePromise(pc)
		if err := pc.SetLocalDescription(sd); err != nil {
			return nil, &ConnectionError{Op: "set local description", Err: err}
		}
		select {
		case <-gatherComplete:
		case <-time.After(b.cfg.GatherTimeout):
			b.logger.Warnf("candidate gathering incomplete after %s, continuing", b.cfg.GatherTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.closedP.Done():
			return nil, &ConnectionClosedError{}
		}
	}

	local := pc.LocalDescription()
	if local == nil {
		return nil, &ConnectionError{Op: "local description", Err: fmt.Errorf("not available after gathering")}
	}
	desc := &media.Description{Type: kind, SDP: local.SDP}

	if kind == media.DescriptionTypeAnswer {
		// our answer fixes the negotiated tracks, so the sink can be
		// prepared from it before media arrives
		if err := b.setupSink(ctx, desc); err != nil {
			go b.teardown(err)
			return nil, err
		}
		b.setState(stateNegotiated)
	}
	return desc, nil
}

// SetRemoteDescription applies the peer's description. A remote answer
// first drives sink setup and only then reaches the peer session, so a
// consumer is attached before the first packet can arrive.
func (b *Bridge) SetRemoteDescription(ctx context.Context, desc *media.Description, setup *signaling.Setup) error {
	if b.isClosed() {
		return &ConnectionClosedError{}
	}
	if desc == nil || desc.SDP == "" {
		return &SetupError{Reason: "empty remote description"}
	}

	switch desc.Type {
	case media.DescriptionTypeOffer:
		pc, err := b.ensurePeer(setup)
		if err != nil {
			return err
		}
		b.setState(stateNegotiating)
		if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: desc.SDP}); err != nil {
			return &ConnectionError{Op: "set remote offer", Err: err}
		}
		return nil

	case media.DescriptionTypeAnswer:
		pc := b.peer()
		if pc == nil {
			return &SetupError{Reason: "answer received before a local offer"}
		}
		if err := b.setupSink(ctx, desc); err != nil {
			go b.teardown(err)
			return err
		}
		if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: desc.SDP}); err != nil {
			return &ConnectionError{Op: "set remote answer", Err: err}
		}
		b.setState(stateNegotiated)
		return nil

	default:
		return &SetupError{Reason: fmt.Sprintf("unsupported description type %q", desc.Type)}
	}
}

// AddICECandidate adds one trickled remote candidate.
func (b *Bridge) AddICECandidate(ctx context.Context, cand signaling.Candidate) error {
	if b.isClosed() {
		return &ConnectionClosedError{}
	}
	pc := b.peer()
	if pc == nil {
		return &SetupError{Reason: "candidate received before any session description"}
	}
	init := webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	}
	if err := pc.AddICECandidate(init); err != nil {
		return &ConnectionError{Op: "add candidate", Err: err}
	}
	return nil
}

// setupSink runs the consumer handoff exactly once per session. Repeat
// calls return the first outcome.
func (b *Bridge) setupSink(ctx context.Context, desc *media.Description) error {
	if desc.Type != media.DescriptionTypeAnswer {
		return &SetupError{Reason: fmt.Sprintf("sink setup requires an answer, got %q", desc.Type)}
	}
	b.sinkOnce.Do(func() {
		b.sinkErr = b.doSinkSetup(ctx, desc)
	})
	return b.sinkErr
}

func (b *Bridge) doSinkSetup(ctx context.Context, desc *media.Description) error {
	bindings, err := media.ResolveTrackBindings(desc.SDP)
	if err != nil {
		b.sinkP.Reject(err)
		return err
	}
	b.logger.Infof("negotiated: %s", media.DescribeCodecs(desc.SDP))

	sinkDesc, err := media.BuildSinkDescription(desc.SDP, bindings)
	if err != nil {
		b.sinkP.Reject(err)
		return err
	}

	// negotiation suspends here until the consumer dials the locator
	conn, err := b.server.AwaitConn(ctx)
	if err != nil {
		werr := &ConnectionError{Op: "await sink consumer", Err: err}
		b.sinkP.Reject(werr)
		return werr
	}

	snk, err := b.sinkFactory.NewSink(conn, sinkDesc)
	if err != nil {
		werr := &ConnectionError{Op: "create sink", Err: err}
		b.sinkP.Reject(werr)
		return werr
	}

	go func() {
		defer utils.Recover(b.logger, "sink.playback")
		err := snk.HandlePlayback(b.ctx)
		if b.isClosed() {
			return
		}
		if err != nil {
			b.teardown(&ConnectionError{Op: "sink playback", Err: err})
		} else {
			b.teardown(nil)
		}
	}()

	b.sinkP.Resolve(&sinkBinding{sink: snk, bindings: bindings})
	go b.reportPlayback(signaling.PlaybackState{Audio: true, Video: true})
	return nil
}

package bridge

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/media"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/signaling"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

// ensurePeer returns the session's peer connection, creating it on first
// use. The first signaling operation decides the transceiver directions.
func (b *Bridge) ensurePeer(setup *signaling.Setup) (*webrtc.PeerConnection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Get() {
		return nil, &ConnectionClosedError{}
	}
	if b.pc != nil {
		return b.pc, nil
	}
	pc, err := b.newPeerConnection(setup)
	if err != nil {
		return nil, &ConnectionError{Op: "create peer connection", Err: err}
	}
	b.pc = pc
	b.pcP.Resolve(pc)
	return pc, nil
}

// newPeerConnection builds the pion API and transceivers. Caller holds
// b.mu; b.audioTr, b.videoTr and b.muxConn are set here.
func (b *Bridge) newPeerConnection(setup *signaling.Setup) (*webrtc.PeerConnection, error) {
	m := &webrtc.MediaEngine{}
	videoRTCPFeedback := []webrtc.RTCPFeedback{{Type: "goog-remb"}, {Type: "ccm", Parameter: "fir"}, {Type: "nack"}, {Type: "nack", Parameter: "pli"}}

	for _, c := range b.cfg.Codecs {
		params := webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    c.MimeType,
				ClockRate:   c.ClockRate,
				Channels:    c.Channels,
				SDPFmtpLine: c.FmtpLine,
			},
			PayloadType: webrtc.PayloadType(c.PayloadType),
		}
		kind := webrtc.RTPCodecTypeAudio
		if c.Kind == "video" {
			kind = webrtc.RTPCodecTypeVideo
			params.RTPCodecCapability.RTCPFeedback = videoRTCPFeedback
		}
		if err := m.RegisterCodec(params, kind); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.MimeType, err)
		}
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, err
	}

	se := webrtc.SettingEngine{}
	if b.cfg.ICEPortMin != 0 || b.cfg.ICEPortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(b.cfg.ICEPortMin, b.cfg.ICEPortMax); err != nil {
			return nil, err
		}
	}
	if len(b.cfg.NAT1To1IPs) > 0 {
		se.SetNAT1To1IPs(b.cfg.NAT1To1IPs, webrtc.ICECandidateTypeHost)
	}
	if b.cfg.ICELite {
		se.SetLite(true)
	}
	if b.cfg.UDPMuxPortMin > 0 {
		udpConn, err := utils.ListenUDPInPortRange(b.cfg.UDPMuxPortMin, b.cfg.UDPMuxPortMax, &net.UDPAddr{IP: net.IPv4zero, Port: 0})
		if err != nil {
			return nil, fmt.Errorf("udp mux: %w", err)
		}
		b.muxConn = udpConn
		se.SetICEUDPMux(webrtc.NewICEUDPMux(nil, udpConn))
		b.logger.Infof("ICE UDP mux on %s", udpConn.LocalAddr())
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(se))

	config := webrtc.Configuration{
		ICEServers:   b.cfg.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
		BundlePolicy: webrtc.BundlePolicyBalanced,
	}
	if b.cfg.ICELite {
		// a lite agent answers connectivity checks only, remote servers
		// are pointless
		config.ICEServers = nil
	}

	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}

	audioDir, videoDir := transceiverDirections(setup)
	b.audioTr, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: audioDir})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}
	b.videoTr, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: videoDir})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		b.logger.Infof("ICE connection state: %s", state)
	})
	pc.OnConnectionStateChange(b.onConnectionState)
	pc.OnTrack(b.relay.handleTrack)

	return pc, nil
}

// transceiverDirections maps the requested setup onto pion directions.
// Default is two-way audio and receive-only video, the shape a doorbell
// or camera peer negotiates.
func transceiverDirections(setup *signaling.Setup) (audio, video webrtc.RTPTransceiverDirection) {
	audio = webrtc.RTPTransceiverDirectionSendrecv
	video = webrtc.RTPTransceiverDirectionRecvonly
	if setup == nil {
		return audio, video
	}
	if d, ok := toTransceiverDirection(setup.Audio); ok {
		audio = d
	}
	if d, ok := toTransceiverDirection(setup.Video); ok {
		video = d
	}
	return audio, video
}

func toTransceiverDirection(d media.Direction) (webrtc.RTPTransceiverDirection, bool) {
	switch d {
	case media.DirectionSendRecv:
		return webrtc.RTPTransceiverDirectionSendrecv, true
	case media.DirectionSendOnly:
		return webrtc.RTPTransceiverDirectionSendonly, true
	case media.DirectionRecvOnly:
		return webrtc.RTPTransceiverDirectionRecvonly, true
	case media.DirectionInactive:
		return webrtc.RTPTransceiverDirectionInactive, true
	}
	return 0, false
}

func (b *Bridge) onConnectionState(state webrtc.PeerConnectionState) {
	b.logger.Infof("peer connection state: %s", state)
	switch state {
	case webrtc.PeerConnectionStateConnected:
		b.logger.Infof("peer connected after %s", time.Since(b.startedAt).Round(time.Millisecond))
	case webrtc.PeerConnectionStateFailed:
		// run teardown off the pion callback goroutine, it will close the
		// peer connection
		go b.teardown(&ConnectionError{Op: "peer connection", Err: fmt.Errorf("state %s", state)})
	case webrtc.PeerConnectionStateClosed:
		go b.teardown(nil)
	}
}

package bridge

import (
	"io"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/media"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/sink"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

// relay pumps inbound RTP and RTCP to the sink, byte for byte and in
// arrival order.
type relay struct {
	b     *Bridge
	audio trackCounters
	video trackCounters
}

type trackCounters struct {
	packets  utils.AtomicUInt64
	bytes    utils.AtomicUInt64
	feedback utils.AtomicUInt64
}

// TrackStats is a point-in-time view of one relay direction.
type TrackStats struct {
	Packets  uint64 `json:"packets"`
	Bytes    uint64 `json:"bytes"`
	Feedback uint64 `json:"feedback"`
}

// Stats reports what the relay has forwarded so far.
type Stats struct {
	Audio TrackStats `json:"audio"`
	Video TrackStats `json:"video"`
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Audio: b.relay.audio.snapshot(),
		Video: b.relay.video.snapshot(),
	}
}

func (c *trackCounters) snapshot() TrackStats {
	return TrackStats{
		Packets:  c.packets.Get(),
		Bytes:    c.bytes.Get(),
		Feedback: c.feedback.Get(),
	}
}

func (r *relay) counters(kind media.TrackKind) *trackCounters {
	if kind == media.TrackKindVideo {
		return &r.video
	}
	return &r.audio
}

// handleTrack is the pion OnTrack callback. It blocks until the sink is
// attached, then pumps until the track or the session ends.
func (r *relay) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	defer utils.Recover(r.b.logger, "relay")

	kind := media.TrackKindAudio
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		kind = media.TrackKindVideo
	}
	r.b.logger.Infof("inbound %s track: ssrc=%d payload=%d codec=%s", kind, track.SSRC(), track.PayloadType(), track.Codec().MimeType)

	sb, err := r.b.sinkP.Await(r.b.ctx)
	if err != nil {
		r.b.logger.Warnf("%s track arrived without a sink: %v", kind, err)
		return
	}
	binding := sb.bindings[kind]
	if binding == nil {
		r.b.logger.Warnf("no sink channel for %s track", kind)
		return
	}

	go r.pumpFeedback(kind, binding, sb.sink, receiver)
	r.pumpRTP(kind, binding, sb.sink, track)
}

func (r *relay) pumpRTP(kind media.TrackKind, binding *media.TrackBinding, snk sink.Sink, track *webrtc.TrackRemote) {
	defer utils.Recover(r.b.logger, "relay.rtp")

	counters := r.counters(kind)
	buf := make([]byte, 1500)
	first := true
	for {
		if r.b.isClosed() {
			return
		}
		n, _, err := track.Read(buf)
		if err != nil {
			if err != io.EOF && !r.b.isClosed() {
				r.b.logger.Errorf("%s track read: err => %v", kind, err)
			}
			return
		}
		if first {
			first = false
			r.onFirstPacket(kind, track)
		}
		if err := snk.SendTrack(binding.ChannelID, buf[:n], false); err != nil {
			go r.b.teardown(&ConnectionError{Op: "sink write", Err: err})
			return
		}
		counters.packets.Add(1)
		counters.bytes.Add(uint64(n))
	}
}

// pumpFeedback forwards the receiver's RTCP toward the consumer on the
// same channel, tagged as feedback.
func (r *relay) pumpFeedback(kind media.TrackKind, binding *media.TrackBinding, snk sink.Sink, receiver *webrtc.RTPReceiver) {
	defer utils.Recover(r.b.logger, "relay.rtcp")

	counters := r.counters(kind)
	buf := make([]byte, 1500)
	for {
		if r.b.isClosed() {
			return
		}
		n, _, err := receiver.Read(buf)
		if err != nil {
			if err != io.EOF && !r.b.isClosed() {
				r.b.logger.Debugf("%s receiver read: %v", kind, err)
			}
			return
		}
		if err := snk.SendTrack(binding.ChannelID, buf[:n], true); err != nil {
			go r.b.teardown(&ConnectionError{Op: "sink write", Err: err})
			return
		}
		counters.feedback.Add(1)
	}
}

// onFirstPacket logs time-to-first-media, the number that matters when a
// session feels slow to start. First video also arms the keyframe
// requester.
func (r *relay) onFirstPacket(kind media.TrackKind, track *webrtc.TrackRemote) {
	elapsed := time.Since(r.b.startedAt).Round(time.Millisecond)
	r.b.logger.Infof("first %s packet after %s, ssrc=%d", kind, elapsed, track.SSRC())
	if kind == media.TrackKindVideo {
		r.b.armKeyframeRequester(uint32(track.SSRC()))
	}
}

package bridge

import (
	"time"

	"github.com/ghettovoice/gosip/log"
	"github.com/pion/rtcp"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

// keyframeRequester nags the peer for keyframes while video flows, so a
// consumer joining mid-stream gets a decodable picture within one
// interval. Both FIR and PLI go out each round since peers differ in
// which one they honor.
type keyframeRequester struct {
	ssrc     uint32
	interval time.Duration
	write    func([]rtcp.Packet) error
	logger   log.Logger

	// FIR command sequence, wraps at 255 per RFC 5104
	seq     uint8
	stopped utils.AtomicBool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newKeyframeRequester(ssrc uint32, interval time.Duration, write func([]rtcp.Packet) error, logger log.Logger) *keyframeRequester {
	return &keyframeRequester{
		ssrc:     ssrc,
		interval: interval,
		write:    write,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (k *keyframeRequester) run() {
	defer close(k.doneCh)
	defer utils.Recover(k.logger, "keyframe")

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if k.stopped.Get() {
				return
			}
			k.request()
		case <-k.stopCh:
			return
		}
	}
}

func (k *keyframeRequester) request() {
	seq := k.seq
	k.seq++

	pkts := []rtcp.Packet{
		&rtcp.FullIntraRequest{
			MediaSSRC: k.ssrc,
			FIR:       []rtcp.FIREntry{{SSRC: k.ssrc, SequenceNumber: seq}},
		},
		&rtcp.PictureLossIndication{MediaSSRC: k.ssrc},
	}
	if err := k.write(pkts); err != nil {
		if !k.stopped.Get() {
			k.logger.Debugf("keyframe request: %v", err)
		}
		return
	}
	k.logger.Tracef("sent FIR seq=%d + PLI for ssrc=%d", seq, k.ssrc)
}

// stop cancels the loop and waits for it to exit; no request is in
// flight once stop returns. Safe to call more than once.
func (k *keyframeRequester) stop() {
	if !k.stopped.Set(true) {
		return
	}
	close(k.stopCh)
	<-k.doneCh
}

// armKeyframeRequester starts the periodic requester once, keyed to the
// inbound video SSRC. Later calls are no-ops so the FIR sequence stays
// monotonic for the whole session.
func (b *Bridge) armKeyframeRequester(ssrc uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.keyframe != nil || b.closed.Get() || b.pc == nil {
		return
	}
	kf := newKeyframeRequester(ssrc, b.cfg.KeyframeInterval, b.pc.WriteRTCP, b.logger)
	b.keyframe = kf
	go kf.run()
	b.logger.Infof("keyframe requester armed: ssrc=%d interval=%s", ssrc, b.cfg.KeyframeInterval)
}

package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/require"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

type rtcpRecorder struct {
	mu      sync.Mutex
	batches [][]rtcp.Packet
}

func (r *rtcpRecorder) write(pkts []rtcp.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, pkts)
	return nil
}

func (r *rtcpRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *rtcpRecorder) snapshot() [][]rtcp.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]rtcp.Packet, len(r.batches))
	copy(out, r.batches)
	return out
}

func waitCount(t *testing.T, rec *rtcpRecorder, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if rec.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d keyframe requests, got %d", want, rec.count())
}

func TestKeyframeRequesterFiresFIRAndPLI(t *testing.T) {
	rec := &rtcpRecorder{}
	k := newKeyframeRequester(0xCAFE, 10*time.Millisecond, rec.write, utils.NewLogrusLogger(utils.DefaultLogLevel, "Test", nil))
	go k.run()
	waitCount(t, rec, 3)
	k.stop()

	for i, pkts := range rec.snapshot() {
		require.Len(t, pkts, 2)

		fir, ok := pkts[0].(*rtcp.FullIntraRequest)
		require.True(t, ok, "first packet must be a FIR")
		require.Equal(t, uint32(0xCAFE), fir.MediaSSRC)
		require.Len(t, fir.FIR, 1)
		require.Equal(t, uint32(0xCAFE), fir.FIR[0].SSRC)
		require.Equal(t, uint8(i), fir.FIR[0].SequenceNumber, "FIR sequence must increase per request")

		pli, ok := pkts[1].(*rtcp.PictureLossIndication)
		require.True(t, ok, "second packet must be a PLI")
		require.Equal(t, uint32(0xCAFE), pli.MediaSSRC)
	}
}

func TestKeyframeRequesterStopIsSynchronous(t *testing.T) {
	rec := &rtcpRecorder{}
	k := newKeyframeRequester(7, 5*time.Millisecond, rec.write, utils.NewLogrusLogger(utils.DefaultLogLevel, "Test", nil))
	go k.run()
	waitCount(t, rec, 1)
	k.stop()

	n := rec.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, n, rec.count(), "no request may fire after stop returns")

	// stop again is a no-op
	k.stop()
}

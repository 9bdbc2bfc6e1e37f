package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/exec"
	"strings"
	"sync"

	"github.com/ghettovoice/gosip/log"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/media"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/rtp"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/signaling"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

// intercom is the reverse audio path: an external encoder process turns
// caller-supplied media into RTP of the negotiated codec, sent to a
// loopback ingest socket, and every ingested datagram goes out through
// the audio sender.
type intercom struct {
	b    *Bridge
	mu   sync.Mutex
	proc *intercomProc
}

type intercomProc struct {
	cmd    *exec.Cmd
	ingest *rtp.Ingest
	done   chan struct{}
}

// StartIntercom feeds source media back to the peer. A running intercom
// is replaced.
func (b *Bridge) StartIntercom(ctx context.Context, source media.MediaSource) error {
	if b.isClosed() {
		return &ConnectionClosedError{}
	}
	b.mu.RLock()
	pc := b.pc
	tr := b.audioTr
	b.mu.RUnlock()
	if pc == nil || tr == nil {
		return &ConnectionClosedError{}
	}
	if b.converter == nil {
		return &IntercomUnsupportedError{Reason: "no converter configured"}
	}
	if dir := tr.CurrentDirection(); !sendCapable(dir) {
		return &IntercomUnsupportedError{Reason: fmt.Sprintf("audio transceiver direction is %s", dir)}
	}

	codec, err := senderCodec(tr.Sender())
	if err != nil {
		return err
	}

	if err := b.interc.start(ctx, source, codec, tr.Sender()); err != nil {
		return err
	}
	b.reportPlayback(signaling.PlaybackState{Audio: true, Video: false})
	return nil
}

// StopIntercom ends the reverse audio path. Calling with no intercom
// running, or after close, is a no-op.
func (b *Bridge) StopIntercom(ctx context.Context) error {
	if b.isClosed() {
		return nil
	}
	b.interc.stop(true)
	return nil
}

// IntercomAvailable reports whether the negotiated session can carry
// reverse audio at all.
func (b *Bridge) IntercomAvailable() bool {
	b.mu.RLock()
	tr := b.audioTr
	b.mu.RUnlock()
	return tr != nil && sendCapable(tr.CurrentDirection())
}

func sendCapable(dir webrtc.RTPTransceiverDirection) bool {
	return dir == webrtc.RTPTransceiverDirectionSendrecv || dir == webrtc.RTPTransceiverDirectionSendonly
}

// senderCodec reads the negotiated audio payload off the sender.
func senderCodec(sender *webrtc.RTPSender) (*media.CodecInfo, error) {
	params := sender.GetParameters()
	if len(params.Codecs) == 0 {
		return nil, &IntercomUnsupportedError{Reason: "no negotiated audio codec"}
	}
	c := params.Codecs[0]
	name := c.MimeType
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return &media.CodecInfo{
		Kind:        media.TrackKindAudio,
		Name:        name,
		PayloadType: uint8(c.PayloadType),
		ClockRate:   c.ClockRate,
		Channels:    c.Channels,
		Fmtp:        c.SDPFmtpLine,
	}, nil
}

func (ic *intercom) start(ctx context.Context, source media.MediaSource, codec *media.CodecInfo, sender *webrtc.RTPSender) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	// replace semantics
	ic.stopLocked()

	ingest, err := rtp.Listen(ic.b.cfg.IntercomPortMin, ic.b.cfg.IntercomPortMax, ic.b.logger)
	if err != nil {
		return &ConnectionError{Op: "intercom ingest", Err: err}
	}

	pipeline, err := ic.b.converter.Convert(ctx, source, media.EncodeTarget{Codec: *codec, RemoteAddr: ingest.LocalAddr()})
	if err != nil {
		ingest.Close()
		return &IntercomUnsupportedError{Reason: fmt.Sprintf("convert %q to %s: %v", source.MimeType, codec, err)}
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: codec.MimeType(), ClockRate: codec.ClockRate, Channels: codec.Channels},
		fmt.Sprintf("audio-%d", rand.Uint32()),
		fmt.Sprintf("bridge-%d", rand.Uint32()),
	)
	if err != nil {
		ingest.Close()
		return &ConnectionError{Op: "intercom track", Err: err}
	}
	if err := sender.ReplaceTrack(track); err != nil {
		ingest.Close()
		return &ConnectionError{Op: "replace audio track", Err: err}
	}

	cmd := exec.CommandContext(ic.b.ctx, pipeline.Path, pipeline.Args...)
	cmd.Stderr = &lineWriter{logger: ic.b.logger}
	if err := cmd.Start(); err != nil {
		ingest.Close()
		return &ConnectionError{Op: "start intercom encoder", Err: err}
	}
	ic.b.logger.Infof("intercom encoder started: pid=%d %s => %s", cmd.Process.Pid, source.URL, ingest.LocalAddr())

	proc := &intercomProc{cmd: cmd, ingest: ingest, done: make(chan struct{})}
	ic.proc = proc

	go ic.pump(proc, track)
	go ic.wait(proc)
	ic.b.drainSenderRTCP(sender)
	return nil
}

// pump forwards ingested datagrams to the peer. pion rewrites the
// payload type and SSRC per the negotiated sender binding.
func (ic *intercom) pump(proc *intercomProc, track *webrtc.TrackLocalStaticRTP) {
	defer utils.Recover(ic.b.logger, "intercom.pump")

	err := proc.ingest.Serve(func(pkt []byte) {
		if _, werr := track.Write(pkt); werr != nil {
			ic.b.logger.Debugf("intercom write: %v", werr)
		}
	})
	if err != nil && !errors.Is(err, rtp.ErrIngestClosed) && !ic.b.isClosed() {
		ic.b.logger.Warnf("intercom ingest: %v", err)
	}
}

func (ic *intercom) wait(proc *intercomProc) {
	err := proc.cmd.Wait()
	close(proc.done)

	ic.mu.Lock()
	unexpected := ic.proc == proc
	if unexpected {
		ic.proc = nil
		proc.ingest.Close()
	}
	ic.mu.Unlock()

	if unexpected && !ic.b.isClosed() {
		ic.b.logger.Warnf("intercom encoder exited: %v", err)
	}
}

// stop ends any running intercom; report pushes the idle playback state
// to the channel.
func (ic *intercom) stop(report bool) {
	ic.mu.Lock()
	had := ic.proc != nil
	ic.stopLocked()
	ic.mu.Unlock()

	if had {
		ic.b.logger.Infof("intercom stopped")
		if report {
			ic.b.reportPlayback(signaling.PlaybackState{Audio: false, Video: false})
		}
	}
}

// stopLocked kills the encoder and waits for its exit. Caller holds
// ic.mu; wait() closes done before it takes the lock, so this cannot
// deadlock.
func (ic *intercom) stopLocked() {
	proc := ic.proc
	if proc == nil {
		return
	}
	ic.proc = nil
	proc.ingest.Close()
	if proc.cmd.Process != nil {
		proc.cmd.Process.Kill()
	}
	<-proc.done
}

// drainSenderRTCP consumes feedback arriving on the outbound sender so
// the interceptor chain keeps running. Started once per session.
func (b *Bridge) drainSenderRTCP(sender *webrtc.RTPSender) {
	if !b.senderDrain.Set(true) {
		return
	}
	go func() {
		defer utils.Recover(b.logger, "sender.rtcp")
		buf := make([]byte, 1500)
		for {
			if b.isClosed() {
				return
			}
			n, _, err := sender.Read(buf)
			if err != nil {
				return
			}
			pkts, err := rtcp.Unmarshal(buf[:n])
			if err != nil {
				b.logger.Debugf("sender rtcp unmarshal: %v", err)
				continue
			}
			for _, pkt := range pkts {
				switch p := pkt.(type) {
				case *rtcp.ReceiverEstimatedMaximumBitrate:
					b.logger.Tracef("intercom REMB: %v", p)
				case *rtcp.ReceiverReport:
					b.logger.Tracef("intercom receiver report: %v", p)
				}
			}
		}
	}()
}

// lineWriter splits child-process stderr into log lines.
type lineWriter struct {
	logger log.Logger
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:i]), "\r")
		if line != "" {
			w.logger.Debugf("encoder: %s", line)
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

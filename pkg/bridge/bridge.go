// Package bridge terminates a bidirectional peer media session and
// re-exposes the inbound tracks as a conventional streaming endpoint on
// the loopback interface. One Bridge is one session: it negotiates over
// an application-provided signaling channel, relays RTP and RTCP to a
// single downstream consumer, keeps inbound video decodable with
// periodic keyframe requests, and can feed caller-supplied audio back to
// the peer through an external encoder process.
package bridge

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ghettovoice/gosip/log"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/media"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/promise"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/signaling"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/sink"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

const controlTimeout = 5 * time.Second

// sinkBinding pairs the connected sink with the resolved track channels.
type sinkBinding struct {
	sink     sink.Sink
	bindings map[media.TrackKind]*media.TrackBinding
}

// Bridge converts one peer session into a loopback streaming endpoint.
// It implements signaling.Session toward the channel.
type Bridge struct {
	id        string
	cfg       Config
	logger    log.Logger
	startedAt time.Time

	channel     signaling.Channel
	converter   media.Converter
	sinkFactory sink.Factory

	server *sink.Server
	relay  *relay
	interc *intercom

	// ctx ends at teardown and bounds every session-scoped goroutine.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	state    sessionState
	pc       *webrtc.PeerConnection
	audioTr  *webrtc.RTPTransceiver
	videoTr  *webrtc.RTPTransceiver
	muxConn  *net.UDPConn
	keyframe *keyframeRequester

	pcP      *promise.Promise[*webrtc.PeerConnection]
	controlP *promise.Promise[signaling.SessionControl]
	sinkP    *promise.Promise[*sinkBinding]
	closedP  *promise.Promise[error]

	sinkOnce sync.Once
	sinkErr  error

	senderDrain utils.AtomicBool
	closeOnce   sync.Once
	closed      utils.AtomicBool
}

// New assembles a bridge for one session. A nil logger gets the package
// default; a nil converter disables the intercom.
func New(cfg Config, channel signaling.Channel, converter media.Converter, factory sink.Factory, logger log.Logger) *Bridge {
	id := uuid.New().String()
	if logger == nil {
		logger = utils.NewLogrusLogger(utils.DefaultLogLevel, "Bridge", nil)
	}
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		id:          id,
		cfg:         cfg.withDefaults(),
		logger:      logger.WithFields(log.Fields{"session": id[:8]}),
		startedAt:   time.Now(),
		channel:     channel,
		converter:   converter,
		sinkFactory: factory,
		ctx:         ctx,
		cancel:      cancel,
		pcP:         promise.New[*webrtc.PeerConnection](),
		controlP:    promise.New[signaling.SessionControl](),
		sinkP:       promise.New[*sinkBinding](),
		closedP:     promise.New[error](),
	}
	b.relay = &relay{b: b}
	b.interc = &intercom{b: b}
	return b
}

func (b *Bridge) ID() string { return b.id }

// Locator returns the loopback endpoint a consumer dials, or nil before
// Start.
func (b *Bridge) Locator() *sink.Locator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.server == nil {
		return nil
	}
	return b.server.Locator()
}

func (b *Bridge) CreatedAt() time.Time { return b.startedAt }

// Start binds the loopback endpoint and opens the signaling session. The
// channel drives negotiation from here on; Start does not wait for it.
func (b *Bridge) Start(ctx context.Context) error {
	if b.closed.Get() {
		return &ConnectionClosedError{}
	}

	srv, err := sink.NewServer(b.cfg.SinkScheme, b.logger)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.server = srv
	b.mu.Unlock()

	ctrl, err := b.channel.StartSession(ctx, b)
	if err != nil {
		werr := &ConnectionError{Op: "start signaling session", Err: err}
		b.teardown(werr)
		return werr
	}
	b.controlP.Resolve(ctrl)

	b.logger.Infof("session started: %s", srv.Locator())
	return nil
}

// Close tears the session down. Safe to call any number of times.
func (b *Bridge) Close() error {
	b.teardown(nil)
	return nil
}

// Closed is closed once teardown has finished.
func (b *Bridge) Closed() <-chan struct{} {
	return b.closedP.Done()
}

// Wait blocks until the session ends and returns the cause, nil for a
// clean local close.
func (b *Bridge) Wait(ctx context.Context) error {
	cause, err := b.closedP.Await(ctx)
	if err != nil {
		return err
	}
	return cause
}

func (b *Bridge) isClosed() bool { return b.closed.Get() }

func (b *Bridge) peer() *webrtc.PeerConnection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pc
}

// teardown runs the close sequence exactly once. The order matters: stop
// producers before the sink, tell the peer before dropping transport,
// settle promises last so late callers observe the closed state.
func (b *Bridge) teardown(cause error) {
	b.closeOnce.Do(func() {
		b.closed.Set(true)
		b.setState(stateClosed)
		if cause != nil {
			b.logger.Infof("closing session: %v", cause)
		} else {
			b.logger.Infof("closing session")
		}

		b.mu.Lock()
		kf := b.keyframe
		pc := b.pc
		mux := b.muxConn
		srv := b.server
		b.mu.Unlock()

		if kf != nil {
			kf.stop()
		}
		b.interc.stop(false)

		if b.sinkP.Settled() && b.sinkP.Err() == nil {
			if sb, _ := b.sinkP.Await(context.Background()); sb != nil {
				sb.sink.Close()
			}
		}
		if srv != nil {
			srv.Close()
		}

		if b.controlP.Settled() && b.controlP.Err() == nil {
			ctrl, _ := b.controlP.Await(context.Background())
			ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
			if err := ctrl.EndSession(ctx); err != nil {
				b.logger.Warnf("end session: %v", err)
			}
			cancel()
		}

		if pc != nil {
			if err := pc.Close(); err != nil {
				b.logger.Warnf("close peer connection: %v", err)
			}
		}
		if mux != nil {
			mux.Close()
		}

		closedErr := &ConnectionClosedError{Cause: cause}
		b.pcP.Reject(closedErr)
		b.controlP.Reject(closedErr)
		b.sinkP.Reject(closedErr)
		b.cancel()
		b.closedP.Resolve(cause)
	})
}

// reportPlayback tells the channel which directions are live. Best
// effort: a missing or failing control only logs.
func (b *Bridge) reportPlayback(state signaling.PlaybackState) {
	ctx, cancel := context.WithTimeout(b.ctx, controlTimeout)
	defer cancel()

	ctrl, err := b.controlP.Await(ctx)
	if err != nil {
		b.logger.Warnf("report playback: no session control: %v", err)
		return
	}
	if err := ctrl.SetPlayback(ctx, state); err != nil {
		b.logger.Warnf("report playback: %v", err)
	}
}

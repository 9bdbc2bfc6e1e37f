// Package rtp receives RTP from local encoder processes.
package rtp

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
	"github.com/ghettovoice/gosip/log"
	"github.com/pion/rtp"
	"github.com/pion/transport/v2/udp"
)

const (
	DefaultPortMin = 30000
	DefaultPortMax = 65530
)

var ErrIngestClosed = errors.New("rtp: ingest closed")

// Ingest is a loopback UDP endpoint an encoder process writes RTP to. It
// accepts the first source that sends a well-formed RTP packet and
// delivers its datagrams in arrival order; junk and stray sources never
// surface.
type Ingest struct {
	lis    net.Listener
	port   int
	stop   utils.AtomicBool
	logger log.Logger

	mu   sync.Mutex
	conn net.Conn
}

// rtpFilter drops anything that does not parse as an RTP v2 header.
func rtpFilter(pkt []byte) bool {
	var h rtp.Header
	if _, err := h.Unmarshal(pkt); err != nil {
		return false
	}
	return h.Version == 2
}

// Listen binds a loopback UDP port inside [portMin, portMax], scanning
// forward from a random start with wrap-around.
func Listen(portMin, portMax int, logger log.Logger) (*Ingest, error) {
	if portMin == 0 {
		portMin = DefaultPortMin
	}
	if portMax == 0 {
		portMax = DefaultPortMax
	}
	if portMin > portMax {
		return nil, utils.ErrPort
	}

	lc := &udp.ListenConfig{
		Backlog:      4,
		AcceptFilter: rtpFilter,
	}

	portStart := rand.Intn(portMax-portMin+1) + portMin
	port := portStart
	for {
		lis, err := lc.Listen("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
		if err == nil {
			return &Ingest{lis: lis, port: port, logger: logger}, nil
		}
		port++
		if port > portMax {
			port = portMin
		}
		if port == portStart {
			break
		}
	}
	return nil, utils.ErrPort
}

func (in *Ingest) Port() int {
	return in.port
}

func (in *Ingest) LocalAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", in.port)
}

// Serve accepts the first RTP source and pumps its packets into onPacket
// until the ingest closes or the source goes away. onPacket owns the
// slice it receives.
func (in *Ingest) Serve(onPacket func(pkt []byte)) error {
	defer utils.Recover(in.logger, "rtp.ingest")

	conn, err := in.lis.Accept()
	if err != nil {
		if in.stop.Get() {
			return ErrIngestClosed
		}
		return fmt.Errorf("ingest accept: %w", err)
	}

	in.mu.Lock()
	if in.stop.Get() {
		in.mu.Unlock()
		conn.Close()
		return ErrIngestClosed
	}
	in.conn = conn
	in.mu.Unlock()

	in.logger.Infof("ingest: encoder source %s", conn.RemoteAddr())

	buf := make([]byte, 1500)
	logged := false
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if in.stop.Get() {
				return ErrIngestClosed
			}
			return fmt.Errorf("ingest read: %w", err)
		}
		if in.stop.Get() {
			return ErrIngestClosed
		}
		if !logged {
			logged = true
			var h rtp.Header
			if _, err := h.Unmarshal(buf[:n]); err == nil {
				in.logger.Infof("ingest: first packet ssrc=%d payload=%d seq=%d", h.SSRC, h.PayloadType, h.SequenceNumber)
			}
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		onPacket(pkt)
	}
}

// Close is idempotent and unblocks Serve.
func (in *Ingest) Close() {
	if !in.stop.Set(true) {
		return
	}
	in.mu.Lock()
	if in.conn != nil {
		in.conn.Close()
	}
	in.mu.Unlock()
	in.lis.Close()
}

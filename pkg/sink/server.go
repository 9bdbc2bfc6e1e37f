package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/promise"
	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
	"github.com/ghettovoice/gosip/log"
)

var ErrServerClosed = errors.New("sink: server closed")

// Locator is the address a downstream consumer dials to play the bridged
// stream.
type Locator struct {
	Scheme string
	Host   string
	Port   int
}

func (l *Locator) String() string {
	return fmt.Sprintf("%s://%s", l.Scheme, net.JoinHostPort(l.Host, strconv.Itoa(l.Port)))
}

// Server owns the loopback transport socket. It accepts one downstream
// consumer and hands the connection over through a promise; extra
// connections are refused.
type Server struct {
	scheme string
	lis    net.Listener
	connP  *promise.Promise[net.Conn]
	closed utils.AtomicBool
	logger log.Logger
}

// NewServer binds an ephemeral TCP port on the loopback interface.
func NewServer(scheme string, logger log.Logger) (*Server, error) {
	lis, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind sink socket: %w", err)
	}
	s := &Server{
		scheme: scheme,
		lis:    lis,
		connP:  promise.New[net.Conn](),
		logger: logger,
	}
	go s.accept()
	return s, nil
}

func (s *Server) accept() {
	defer utils.Recover(s.logger, "sink.accept")

	conn, err := s.lis.Accept()
	if err != nil {
		if !s.closed.Get() {
			s.logger.Warnf("sink accept: %v", err)
		}
		s.connP.Reject(ErrServerClosed)
		return
	}
	s.logger.Infof("sink consumer connected from %s", conn.RemoteAddr())
	if !s.connP.Resolve(conn) {
		conn.Close()
		return
	}

	// one consumer per session
	for {
		extra, err := s.lis.Accept()
		if err != nil {
			return
		}
		s.logger.Warnf("sink: refusing extra consumer from %s", extra.RemoteAddr())
		extra.Close()
	}
}

func (s *Server) Locator() *Locator {
	addr := s.lis.Addr().(*net.TCPAddr)
	return &Locator{Scheme: s.scheme, Host: "127.0.0.1", Port: addr.Port}
}

// AwaitConn blocks until a consumer connects, the server closes, or ctx
// ends.
func (s *Server) AwaitConn(ctx context.Context) (net.Conn, error) {
	return s.connP.Await(ctx)
}

// Close shuts the listener and any accepted connection. Safe to call more
// than once.
func (s *Server) Close() error {
	if !s.closed.Set(true) {
		return nil
	}
	err := s.lis.Close()
	if s.connP.Settled() && s.connP.Err() == nil {
		if conn, _ := s.connP.Await(context.Background()); conn != nil {
			conn.Close()
		}
	} else {
		s.connP.Reject(ErrServerClosed)
	}
	return err
}

package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/utils"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := utils.NewLogrusLogger(utils.DefaultLogLevel, "SinkTest", nil)
	s, err := NewServer("rtsp", logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func TestServerLocator(t *testing.T) {
	s := newTestServer(t)
	defer s.Close()

	loc := s.Locator()
	if loc.Host != "127.0.0.1" {
		t.Fatalf("host: %s", loc.Host)
	}
	if loc.Port == 0 {
		t.Fatal("port must be allocated at bind time")
	}
	if !strings.HasPrefix(loc.String(), "rtsp://127.0.0.1:") {
		t.Fatalf("locator: %s", loc.String())
	}
}

func TestServerAwaitConn(t *testing.T) {
	s := newTestServer(t)
	defer s.Close()

	client, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", s.Locator().Port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := s.AwaitConn(ctx)
	if err != nil {
		t.Fatalf("AwaitConn: %v", err)
	}
	if conn == nil {
		t.Fatal("nil conn")
	}
}

func TestServerCloseRejectsWaiters(t *testing.T) {
	s := newTestServer(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.AwaitConn(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrServerClosed) {
			t.Fatalf("want ErrServerClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released on Close")
	}
}

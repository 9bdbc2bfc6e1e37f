package sink

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestWriterPreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	const frames = 100
	w := NewWriter(func(f Frame) error {
		mu.Lock()
		got = append(got, f.ChannelID)
		if len(got) == frames {
			close(done)
		}
		mu.Unlock()
		return nil
	}, frames)
	defer w.Close()

	for i := 0; i < frames; i++ {
		if err := w.Push(Frame{ChannelID: fmt.Sprintf("f%03d", i)}); err != nil {
			t.Fatalf("Push %d: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range got {
		if want := fmt.Sprintf("f%03d", i); id != want {
			t.Fatalf("frame %d: got %s, want %s", i, id, want)
		}
	}
}

func TestWriterOverflowKills(t *testing.T) {
	block := make(chan struct{})
	w := NewWriter(func(f Frame) error {
		<-block
		return nil
	}, 2)
	defer close(block)
	defer w.Close()

	// first frame may be in flight; queue capacity is 2
	var overflow error
	for i := 0; i < 8; i++ {
		if err := w.Push(Frame{ChannelID: "x"}); err != nil {
			overflow = err
			break
		}
	}
	if !errors.Is(overflow, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", overflow)
	}
	if err := w.Push(Frame{ChannelID: "y"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("push after overflow: want ErrQueueFull, got %v", err)
	}
	if !errors.Is(w.Err(), ErrQueueFull) {
		t.Fatalf("Err: want ErrQueueFull, got %v", w.Err())
	}
}

func TestWriterOutErrorPropagates(t *testing.T) {
	boom := errors.New("conn reset")
	w := NewWriter(func(f Frame) error { return boom }, 4)
	defer w.Close()

	w.Push(Frame{ChannelID: "a"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Err() != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !errors.Is(w.Err(), boom) {
		t.Fatalf("Err: want %v, got %v", boom, w.Err())
	}
	if err := w.Push(Frame{ChannelID: "b"}); !errors.Is(err, boom) {
		t.Fatalf("push after death: want %v, got %v", boom, err)
	}
}

func TestWriterCloseIdempotent(t *testing.T) {
	w := NewWriter(func(f Frame) error { return nil }, 4)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if w.Err() != nil {
		t.Fatalf("clean close must keep Err nil, got %v", w.Err())
	}
	if err := w.Push(Frame{}); !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("push after close: want ErrWriterClosed, got %v", err)
	}
}

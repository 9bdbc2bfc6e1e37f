package sink

import (
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

var (
	ErrWriterClosed = errors.New("sink: writer closed")
	ErrQueueFull    = errors.New("sink: frame queue overflow")
)

// Writer decouples the relay from a possibly slow consumer. Frames are
// queued in order and drained by a single goroutine; a full queue is
// treated as a dead consumer and kills the writer rather than blocking
// the relay.
type Writer struct {
	mu     sync.Mutex
	queue  deque.Deque
	max    int
	err    error
	closed bool

	notify chan struct{}
	done   chan struct{}
	out    func(Frame) error
}

// NewWriter starts the drain goroutine. out runs on that goroutine only.
func NewWriter(out func(Frame) error, max int) *Writer {
	if max <= 0 {
		max = 512
	}
	w := &Writer{
		max:    max,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    out,
	}
	go w.drain()
	return w
}

// Push queues one frame. It never blocks.
func (w *Writer) Push(f Frame) error {
	w.mu.Lock()
	if w.closed {
		err := w.err
		w.mu.Unlock()
		return err
	}
	if w.queue.Len() >= w.max {
		w.mu.Unlock()
		w.fail(ErrQueueFull)
		return ErrQueueFull
	}
	w.queue.PushBack(f)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

// Len reports the number of queued frames.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue.Len()
}

// Err reports why the writer died. It is nil while the writer runs and
// stays nil after a clean Close.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed && !errors.Is(w.err, ErrWriterClosed) {
		return w.err
	}
	return nil
}

// Close stops the drain goroutine. Idempotent.
func (w *Writer) Close() error {
	w.fail(ErrWriterClosed)
	return nil
}

func (w *Writer) drain() {
	for {
		f, ok := w.pop()
		if ok {
			if err := w.out(f); err != nil {
				w.fail(err)
				return
			}
			continue
		}
		select {
		case <-w.notify:
		case <-w.done:
			return
		}
	}
}

func (w *Writer) pop() (Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.queue.Len() == 0 {
		return Frame{}, false
	}
	return w.queue.PopFront().(Frame), true
}

func (w *Writer) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.err = err
	close(w.done)
}

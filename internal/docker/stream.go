package docker

import (
	"errors"
	"io"
	"sync"

	"github.com/dockhand/dockhand-backend/internal/pkg/metrics"
)

// errStreamClosed aborts the producer copy once the consumer has closed the
// stream.
var errStreamClosed = errors.New("stream closed")

// Stream is a push-based sequence of output chunks from the engine: a log tail
// or the output of one exec invocation. Chunks are delivered in the order the
// engine produced them; the channel closes on termination, after which Err
// reports the terminal error (nil for a clean end-of-stream).
//
// The consumer owns the stream and must call Close, which releases the
// underlying engine connection and is safe to call more than once.
type Stream struct {
	ch chan []byte

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	upstream  io.Closer
	done      chan struct{}
	tracked   bool // counted in LogStreamsActive; log tails only, not execs
}

func newStream(upstream io.Closer) *Stream {
	return &Stream{
		ch:       make(chan []byte, 64),
		upstream: upstream,
		done:     make(chan struct{}),
	}
}

// newLogStream is newStream plus the active log-tail gauge. Exec output
// streams are command-scoped and stay out of that gauge.
func newLogStream(upstream io.Closer) *Stream {
	s := newStream(upstream)
	s.tracked = true
	metrics.LogStreamsActive.Inc()
	return s
}

// Chunks returns the channel of output chunks. It is closed when the stream
// terminates.
func (s *Stream) Chunks() <-chan []byte {
	return s.ch
}

// Err returns the terminal error. Valid once Chunks is closed; nil means the
// upstream ended cleanly.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the upstream connection. The producer goroutine observes the
// closed connection, records termination, and closes the chunk channel.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.upstream != nil {
			err = s.upstream.Close()
		}
		if s.tracked {
			metrics.LogStreamsActive.Dec()
		}
	})
	return err
}

// finish records the terminal error and closes the chunk channel. Called
// exactly once, by the producer goroutine.
func (s *Stream) finish(err error) {
	if err == io.EOF || errors.Is(err, errStreamClosed) {
		err = nil
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.ch)
}

// write pushes one chunk, copying it because engine readers reuse their
// buffers. Returns errStreamClosed once the consumer has closed the stream.
func (s *Stream) write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	select {
	case s.ch <- chunk:
		return len(p), nil
	case <-s.done:
		return 0, errStreamClosed
	}
}

// streamWriter adapts Stream.write to io.Writer for stdcopy and io.Copy.
type streamWriter struct{ s *Stream }

func (w *streamWriter) Write(p []byte) (int, error) {
	return w.s.write(p)
}

// Package output provides an append-only byte log with multiple concurrent
// subscribers, each tracking their own read offset. A job owns two Logs, one
// for stdout and one for stderr, so a caller streaming output can tell the
// two apart instead of receiving one interleaved byte stream.
package output

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Write when the log has already been closed.
var ErrClosed = errors.New("write to closed log")

// Log is an append-only, thread-safe byte log. It implements io.Writer so it
// can be used directly as cmd.Stdout / cmd.Stderr. Subscribers created via
// Subscribe each maintain an independent read offset and block until new
// data is available, the log is closed, or the caller's context is done.
type Log struct {
	mu        sync.Mutex
	cond      *sync.Cond
	buf       []byte
	closed    bool
	maxBytes  int // 0 means unbounded
	truncated bool
}

// NewLog creates an unbounded Log.
func NewLog() *Log {
	return NewLogWithLimit(0)
}

// NewLogWithLimit creates a Log that silently drops bytes written beyond
// maxBytes rather than growing without bound. A zero maxBytes means
// unbounded. Dropped writes never surface as an error to the writer (a
// truncated log is still a usable log); Truncated reports whether any bytes
// were dropped.
func NewLogWithLimit(maxBytes int) *Log {
	l := &Log{maxBytes: maxBytes}
	// cond.L refers to Log.mu.
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Write appends bytes to the log, then wakes all waiting subscribers.
// Returns ErrClosed if the log has been closed. If the log has a byte limit
// and is already at or beyond it, the write is silently dropped and Write
// still reports success, since a command's stdout/stderr write is not
// expected to fail because our log is full.
func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}

	if l.maxBytes > 0 {
		room := l.maxBytes - len(l.buf)
		if room <= 0 {
			l.truncated = true
			return len(p), nil
		}
		if len(p) > room {
			l.buf = append(l.buf, p[:room]...)
			l.truncated = true
		} else {
			l.buf = append(l.buf, p...)
		}
	} else {
		l.buf = append(l.buf, p...)
	}

	l.cond.Broadcast()
	return len(p), nil
}

// Close marks the log as complete. Subsequent subscriber reads that have
// consumed all data will return io.EOF.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.cond.Broadcast()
}

// Truncated reports whether any bytes were dropped because the log reached
// its byte limit.
func (l *Log) Truncated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.truncated
}

// Subscriber reads a Log from the beginning, blocking until data is
// available, the log is closed (io.EOF), the subscriber is closed
// (io.ErrClosedPipe), or the caller's context is done (ctx.Err()).
type Subscriber interface {
	Read(ctx context.Context, p []byte) (int, error)
	Close() error
}

// Subscribe returns a new Subscriber starting at offset 0. The caller must
// call Close when done reading.
func (l *Log) Subscribe() Subscriber {
	return &logSubscriber{log: l, done: make(chan struct{})}
}

// logSubscriber tracks a per-reader offset into a Log. Ideally logs would
// live in a database; for simplicity they are buffered in memory and read
// through this subscriber.
type logSubscriber struct {
	log       *Log
	offset    int
	done      chan struct{}
	closeOnce sync.Once
}

// Read copies available data from the log into p, blocking until data is
// available, the log is closed (io.EOF), the subscriber is closed
// (io.ErrClosedPipe), or ctx is done (ctx.Err()).
func (s *logSubscriber) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.log.mu.Lock()
	defer s.log.mu.Unlock()

	// context.AfterFunc runs its callback (possibly immediately, if ctx is
	// already done) in its own goroutine, so it can safely take the lock
	// itself to broadcast; this closes the window between checking ctx.Err()
	// and blocking on cond.Wait() where a cancellation could otherwise be
	// missed.
	stop := context.AfterFunc(ctx, func() {
		s.log.mu.Lock()
		s.log.cond.Broadcast()
		s.log.mu.Unlock()
	})
	defer stop()

	for s.offset == len(s.log.buf) {
		if s.log.closed {
			return 0, io.EOF
		}
		select {
		case <-s.done:
			return 0, io.ErrClosedPipe
		default:
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.log.cond.Wait()
	}

	n := copy(p, s.log.buf[s.offset:])
	s.offset += n
	return n, nil
}

// Close signals the subscriber to stop reading. Any blocked Read call will
// return io.ErrClosedPipe. Close is safe to call multiple times.
func (s *logSubscriber) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.log.mu.Lock()
		s.log.cond.Broadcast()
		s.log.mu.Unlock()
	})
	return nil
}

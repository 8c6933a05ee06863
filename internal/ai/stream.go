package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// StreamState is the lifecycle position of a Stream.
type StreamState int

const (
	StreamOpen StreamState = iota
	StreamEnded
	StreamErrored
	StreamCancelled
)

func (s StreamState) String() string {
	switch s {
	case StreamOpen:
		return "open"
	case StreamEnded:
		return "ended"
	case StreamErrored:
		return "errored"
	case StreamCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stream is a pull-based, finite, non-restartable sequence of reply fragments.
// Fragments are produced only when Next is called; Close stops production and
// releases the transport.
type Stream struct {
	next      func() (string, error)
	release   func() error
	closeOnce sync.Once
	closeErr  error

	mu    sync.Mutex
	state StreamState
	err   error
	text  string
}

// NewStream wraps a fragment source. next returns io.EOF once the transport
// signals completion. release may be nil.
func NewStream(next func() (string, error), release func() error) *Stream {
	return &Stream{next: next, release: release}
}

// StreamOf returns a stream that yields the supplied fragments in order.
func StreamOf(fragments ...string) *Stream {
	idx := 0
	return NewStream(func() (string, error) {
		if idx >= len(fragments) {
			return "", io.EOF
		}
		fragment := fragments[idx]
		idx++
		return fragment, nil
	}, nil)
}

// Next advances to the next non-empty fragment. It returns false once the
// stream has ended, failed or been cancelled.
func (s *Stream) Next() bool {
	for {
		if s.State() != StreamOpen {
			return false
		}
		fragment, err := s.next()
		if err != nil {
			s.finish(err)
			return false
		}
		if fragment == "" {
			continue
		}
		s.mu.Lock()
		if s.state != StreamOpen {
			s.mu.Unlock()
			return false
		}
		s.text = fragment
		s.mu.Unlock()
		return true
	}
}

// Text returns the fragment produced by the last successful Next.
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Err returns the error that stopped the stream, if any. A normal end and a
// caller-initiated Close both report nil.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State reports the current lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops the stream. Closing an open stream marks it cancelled.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.state == StreamOpen {
		s.state = StreamCancelled
	}
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		if s.release != nil {
			s.closeErr = s.release()
		}
	})
	return s.closeErr
}

func (s *Stream) finish(err error) {
	s.mu.Lock()
	if s.state == StreamOpen {
		switch {
		case errors.Is(err, io.EOF):
			s.state = StreamEnded
		case errors.Is(err, context.Canceled):
			s.state = StreamCancelled
		default:
			s.state = StreamErrored
			s.err = err
		}
	}
	s.mu.Unlock()
	_ = s.Close()
}

// Collect drains the stream and returns the concatenated reply. On failure the
// text gathered so far is returned with the error.
func Collect(s *Stream) (string, error) {
	defer s.Close()
	builder := &strings.Builder{}
	for s.Next() {
		builder.WriteString(s.Text())
	}
	return builder.String(), s.Err()
}

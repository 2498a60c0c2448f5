// Package providertest provides in-memory backends for tests.
package providertest

import (
	"context"
	"io"
	"sync"

	"github.com/infinitepi-io/chatrix/internal/provider"
)

// Stream replays a fixed list of raw events. If Err is set it is returned
// after the events instead of io.EOF.
type Stream struct {
	Events [][]byte
	Err    error

	mu     sync.Mutex
	next   int
	closed bool
}

// NewStream builds a stream over events given as JSON strings.
func NewStream(events ...string) *Stream {
	raw := make([][]byte, 0, len(events))
	for _, e := range events {
		raw = append(raw, []byte(e))
	}
	return &Stream{Events: raw}
}

func (s *Stream) Recv() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.Events) {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	ev := s.Events[s.next]
	s.next++
	return ev, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Consumed reports how many events have been handed out.
func (s *Stream) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Call records one InvokeStream call.
type Call struct {
	BackendID string
	Payload   []byte
}

// Backend returns Stream for every call, or Err when set.
type Backend struct {
	Stream *Stream
	Err    error

	mu    sync.Mutex
	calls []Call
}

func (b *Backend) InvokeStream(ctx context.Context, backendID string, payload []byte) (provider.EventStream, error) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{BackendID: backendID, Payload: append([]byte(nil), payload...)})
	b.mu.Unlock()

	if b.Err != nil {
		return nil, b.Err
	}
	if b.Stream == nil {
		return NewStream(), nil
	}
	return b.Stream, nil
}

// Calls returns the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

package host

import (
	"sync"

	"github.com/samber/oops"

	"github.com/egoavara/plugforge/internal/plugin"
)

// Signal carries reinitialization requests to the host. Requests coalesce:
// any number of calls before the host reacts yield a single wake-up.
type Signal struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

// NewSignal creates an open Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Reinitialize requests a host reinitialization. It never blocks.
func (s *Signal) Reinitialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return oops.Code(plugin.CodeReinitializeFailed).
			Errorf("host is no longer accepting reinitialization requests")
	}

	select {
	case s.ch <- struct{}{}:
	default:
	}
	return nil
}

// C returns the channel the host receives requests on. It is closed by Close,
// after any pending request.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Close stops accepting requests. It is safe to call more than once.
func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

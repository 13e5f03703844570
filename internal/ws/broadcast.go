package ws

import (
	"errors"
	"sync"

	"github.com/NotCreative21/taurus/internal/logging"
)

var log = logging.L("ws")

var (
	ErrTooManyConnections = errors.New("too many subscriber connections")
	ErrDuplicateID        = errors.New("subscriber id already registered")
	ErrSubscriberClosed   = errors.New("subscriber closed")
	ErrQueueFull          = errors.New("subscriber send queue full")
)

// Subscriber is a remote party receiving relay frames. Send must not block.
type Subscriber interface {
	ID() string
	Wants(kind Kind) bool
	Send(data []byte) error
	Close()
}

// Registry tracks connected subscribers. One mutex guards both membership
// changes and broadcast iteration, so every subscriber registered when a
// broadcast starts sees the same frame.
type Registry struct {
	mu       sync.Mutex
	subs     map[string]Subscriber
	maxConns int // 0 = unlimited
}

func NewRegistry(maxConns int) *Registry {
	return &Registry{
		subs:     make(map[string]Subscriber),
		maxConns: maxConns,
	}
}

func (r *Registry) Add(s Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[s.ID()]; ok {
		return ErrDuplicateID
	}
	if r.maxConns > 0 && len(r.subs) >= r.maxConns {
		return ErrTooManyConnections
	}
	r.subs[s.ID()] = s
	return nil
}

// Remove unregisters and closes the subscriber. It reports whether the id
// was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return false
	}
	delete(r.subs, id)
	s.Close()
	return true
}

// Broadcast sends f to every subscriber that wants its kind and returns the
// number of successful deliveries. A subscriber whose send fails is dropped
// on the spot.
func (r *Registry) Broadcast(f Frame) int {
	data := f.Encode()

	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for id, s := range r.subs {
		if !s.Wants(f.Kind) {
			continue
		}
		if err := s.Send(data); err != nil {
			log.Info("dropping subscriber", logging.KeySubscriber, id, logging.KeyError, err)
			delete(r.subs, id)
			s.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo delivers f to a single subscriber, dropping it on failure.
func (r *Registry) SendTo(id string, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return ErrSubscriberClosed
	}
	if err := s.Send(f.Encode()); err != nil {
		delete(r.subs, id)
		s.Close()
		return err
	}
	return nil
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Package network provides the connectivity and link-quality signals the
// resilience helper reacts to.
package network

import (
	"sync"

	"github.com/vietddude/absenta/internal/core/domain"
)

// Notifier reports connectivity. Subscribers are called on edges only,
// never for a repeated state.
type Notifier interface {
	// Online returns the current connectivity snapshot.
	Online() bool

	// Subscribe registers fn for connectivity changes and returns a
	// function that removes the registration.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// QualitySource is an optional, best-effort link-quality descriptor.
// ok is false when no measurement is available.
type QualitySource interface {
	Quality() (q domain.NetworkQuality, ok bool)
}

// subscribers is a small registry shared by the notifier implementations.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(bool)
}

func (s *subscribers) add(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(online bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Manual is a Notifier and QualitySource whose state is set explicitly.
// It drives tests and the agent's forced-offline mode.
type Manual struct {
	mu         sync.RWMutex
	online     bool
	quality    domain.NetworkQuality
	hasQuality bool
	subs       subscribers
}

// NewManual creates a manual notifier in the given state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

func (m *Manual) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *Manual) Subscribe(fn func(online bool)) func() {
	return m.subs.add(fn)
}

// Set changes connectivity and synchronously notifies subscribers if the
// state actually changed.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed {
		m.subs.notify(online)
	}
}

// SetQuality sets the reported link quality.
func (m *Manual) SetQuality(q domain.NetworkQuality) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quality = q
	m.hasQuality = true
}

func (m *Manual) Quality() (domain.NetworkQuality, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quality, m.hasQuality
}

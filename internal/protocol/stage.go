package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotParked is returned when a participant is activated while another
// one is still signed in.
var ErrNotParked = errors.New("another participant is still active")

// Participant is a session that can be signed in and out.
type Participant interface {
	Name() string
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// Stage enforces strict alternation: at most one participant is signed in.
type Stage struct {
	mu     sync.Mutex
	active Participant
}

// Active returns the signed-in participant, or nil.
func (s *Stage) Active() Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Activate signs p in. Activating the active participant signs it out and
// back in, which forces a fresh read of server state. Activating anyone
// else while a participant is active fails with ErrNotParked.
func (s *Stage) Activate(ctx context.Context, p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		if s.active != p {
			return fmt.Errorf("activate %s while %s is active: %w", p.Name(), s.active.Name(), ErrNotParked)
		}
		if err := p.SignOut(ctx); err != nil {
			return fmt.Errorf("re-authenticate %s: %w", p.Name(), err)
		}
		s.active = nil
	}
	if err := p.SignIn(ctx); err != nil {
		return fmt.Errorf("activate %s: %w", p.Name(), err)
	}
	s.active = p
	return nil
}

// Park signs the active participant out. Parking an empty stage is a
// no-op.
func (s *Stage) Park(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	if err := s.active.SignOut(ctx); err != nil {
		return fmt.Errorf("park %s: %w", s.active.Name(), err)
	}
	s.active = nil
	return nil
}

// Switch parks whoever is active and activates p.
func (s *Stage) Switch(ctx context.Context, p Participant) error {
	if cur := s.Active(); cur != nil && cur != p {
		if err := s.Park(ctx); err != nil {
			return err
		}
	}
	return s.Activate(ctx, p)
}

package testutil

import (
	"context"
	"sync"

	"impound-lot-finder/internal/positioning"
)

// MockPositioner returns a fixed fix or error. With Block set it waits for
// the context to end, which simulates a device that never answers. Gate holds
// calls until released.
type MockPositioner struct {
	Position *positioning.Position
	Err      error
	Block    bool

	mu      sync.Mutex
	options []positioning.Options
	gate    chan struct{}
}

// Gate makes later calls wait until release is called or their context ends.
// release is idempotent.
func (m *MockPositioner) Gate() (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gate = ch
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *MockPositioner) CurrentPosition(ctx context.Context, opts positioning.Options) (*positioning.Position, error) {
	m.mu.Lock()
	m.options = append(m.options, opts)
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Position, nil
}

// Options returns the options of every call so far
func (m *MockPositioner) Options() []positioning.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]positioning.Options(nil), m.options...)
}

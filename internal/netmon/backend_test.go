package netmon

import (
	"context"
	"sync"
	"time"
)

// fakeBackend is a test double for the Backend interface. Tests drive
// availability through SetAvailable and script reachability outcomes.
type fakeBackend struct {
	mu            sync.Mutex
	available     bool
	reachErr      error
	reachDelay    time.Duration
	callback      func(bool)
	canReachCalls int
}

func newFakeBackend(available bool) *fakeBackend {
	return &fakeBackend{available: available}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Available() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available, nil
}

func (f *fakeBackend) Watch(ctx context.Context, callback func(available bool)) error {
	f.mu.Lock()
	f.callback = callback
	f.mu.Unlock()

	<-ctx.Done()
	return nil
}

// SetAvailable simulates a platform transition.
func (f *fakeBackend) SetAvailable(v bool) {
	f.mu.Lock()
	f.available = v
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(v)
	}
}

func (f *fakeBackend) SetReachResult(err error, delay time.Duration) {
	f.mu.Lock()
	f.reachErr = err
	f.reachDelay = delay
	f.mu.Unlock()
}

func (f *fakeBackend) ReachCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canReachCalls
}

func (f *fakeBackend) CanReach(ctx context.Context, ep Endpoint) error {
	f.mu.Lock()
	f.canReachCalls++
	err := f.reachErr
	delay := f.reachDelay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

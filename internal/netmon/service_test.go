package netmon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService creates a Service around a fake backend with a long
// reconcile interval so the ticker does not interfere.
func newTestService(backend *fakeBackend) *Service {
	return NewService(backend, time.Hour)
}

func startService(t *testing.T, s *Service) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("timeout waiting for service to stop")
		}
	})

	// Wait until the watcher registered its callback.
	require.Eventually(t, func() bool {
		backend := s.backend.(*fakeBackend)
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.callback != nil
	}, time.Second, 5*time.Millisecond)

	return cancel
}

func TestService_InitialSnapshot(t *testing.T) {
	s := newTestService(newFakeBackend(true))
	defer s.Close()

	assert.True(t, s.Available())
	assert.Equal(t, uint64(0), s.State().Generation)
}

func TestService_TransitionUpdatesState(t *testing.T) {
	backend := newFakeBackend(true)
	s := newTestService(backend)
	defer s.Close()
	startService(t, s)

	backend.SetAvailable(false)
	assert.False(t, s.Available())
	assert.Equal(t, uint64(1), s.State().Generation)

	backend.SetAvailable(true)
	assert.True(t, s.Available())
	assert.Equal(t, uint64(2), s.State().Generation)
}

func TestService_GenerationMonotonic(t *testing.T) {
	backend := newFakeBackend(true)
	s := newTestService(backend)
	defer s.Close()
	startService(t, s)

	var last uint64
	for i := 0; i < 10; i++ {
		backend.SetAvailable(i%2 == 0)
		gen := s.State().Generation
		assert.GreaterOrEqual(t, gen, last)
		last = gen
	}
}

func TestService_DuplicateObservationsCoalesced(t *testing.T) {
	backend := newFakeBackend(true)
	s := newTestService(backend)
	defer s.Close()
	startService(t, s)

	ch, unsub := s.Subscribe()
	defer unsub()

	// Drain snapshot.
	<-ch

	backend.SetAvailable(true)
	backend.SetAvailable(true)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for unchanged state: %+v", ev)
	case <-time.After(100 * time.Millisecond):
		// Expected: no event
	}
}

func TestService_Subscribe_ReceivesSnapshotThenLive(t *testing.T) {
	backend := newFakeBackend(true)
	s := newTestService(backend)
	defer s.Close()
	startService(t, s)

	ch, unsub := s.Subscribe()
	defer unsub()

	select {
	case ev := <-ch:
		assert.True(t, ev.Available)
		assert.Equal(t, uint64(0), ev.Generation)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot")
	}

	backend.SetAvailable(false)

	select {
	case ev := <-ch:
		assert.False(t, ev.Available)
		assert.Equal(t, uint64(1), ev.Generation)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for transition")
	}
}

func TestService_Subscribe_OrderPreserved(t *testing.T) {
	backend := newFakeBackend(false)
	s := newTestService(backend)
	defer s.Close()
	startService(t, s)

	ch, unsub := s.Subscribe()
	defer unsub()

	// Drain snapshot.
	<-ch

	backend.SetAvailable(true)
	backend.SetAvailable(false)
	backend.SetAvailable(true)

	expected := []bool{true, false, true}
	for i, want := range expected {
		select {
		case ev := <-ch:
			assert.Equal(t, want, ev.Available, "event %d", i)
			assert.Equal(t, uint64(i+1), ev.Generation, "event %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestService_UnsubscribeWhileDraining(t *testing.T) {
	backend := newFakeBackend(true)
	s := newTestService(backend)
	defer s.Close()
	startService(t, s)

	ch, unsub := s.Subscribe()

	// Unsubscribing from within the drain loop must not deadlock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
			unsub()
		}
	}()

	backend.SetAvailable(false)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout: unsubscribe from handler deadlocked")
	}
}

func TestService_MultipleSubscribers(t *testing.T) {
	backend := newFakeBackend(true)
	s := newTestService(backend)
	defer s.Close()
	startService(t, s)

	ch1, unsub1 := s.Subscribe()
	defer unsub1()
	ch2, unsub2 := s.Subscribe()
	defer unsub2()

	// Drain snapshots.
	<-ch1
	<-ch2

	backend.SetAvailable(false)

	for _, ch := range []<-chan StateEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.False(t, ev.Available)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestService_ReconcilePollsBackend(t *testing.T) {
	backend := newFakeBackend(true)
	s := NewService(backend, time.Minute)
	defer s.Close()

	mock := clock.NewMock()
	s.clock = mock

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.callback != nil
	}, time.Second, 5*time.Millisecond)

	// Flip availability without a watcher event: only the reconcile
	// poll can notice.
	backend.mu.Lock()
	backend.available = false
	backend.mu.Unlock()

	// Advance repeatedly: the ticker may not exist yet when the first
	// tick is injected.
	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		return !s.Available()
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Start to return")
	}
}

func TestService_Close_Idempotent(t *testing.T) {
	s := newTestService(newFakeBackend(true))

	require.NotPanics(t, func() {
		_ = s.Close()
		_ = s.Close()
	})
}

func TestService_SubscribeAfterClose_ReturnsClosedChannel(t *testing.T) {
	s := newTestService(newFakeBackend(true))
	require.NoError(t, s.Close())

	ch, unsub := s.Subscribe()
	defer unsub()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "subscription on a closed service must deliver nothing")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestService_SubscribeRacesClose(t *testing.T) {
	// Hammer Subscribe against Close. The snapshot send must never land
	// on a queue Close already shut, and every returned channel must end
	// up closed.
	for i := 0; i < 200; i++ {
		s := newTestService(newFakeBackend(true))

		start := make(chan struct{})
		chans := make(chan (<-chan StateEvent), 4)
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				ch, _ := s.Subscribe()
				chans <- ch
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = s.Close()
		}()

		close(start)
		wg.Wait()
		close(chans)

		for ch := range chans {
			drained := make(chan struct{})
			go func(ch <-chan StateEvent) {
				defer close(drained)
				for range ch {
				}
			}(ch)
			select {
			case <-drained:
			case <-time.After(time.Second):
				t.Fatal("timeout: subscriber channel never closed")
			}
		}
	}
}

func TestService_Close_ClosesSubscribers(t *testing.T) {
	s := newTestService(newFakeBackend(true))

	ch, _ := s.Subscribe() // Don't call unsub, let Close handle it

	require.NoError(t, s.Close())

	// Drain snapshot, then expect close.
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for channel close")
		}
	}
}

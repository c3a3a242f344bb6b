package identity

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/studlyf/gateway/internal/models"
)

func testPrincipal(subject string) *models.Principal {
	return &models.Principal{
		ID:       uuid.Must(uuid.NewV7()),
		Subject:  subject,
		Email:    subject + "@example.com",
		IssuedAt: time.Now(),
	}
}

func TestHub_SubscribeReplaysCurrentState(t *testing.T) {
	t.Run("initial state is anonymous", func(t *testing.T) {
		hub := NewHub()

		var events []Event
		cancel := hub.Subscribe(func(ev Event) {
			events = append(events, ev)
		})
		defer cancel()

		require.Len(t, events, 1)
		require.True(t, events[0].Anonymous())
	})

	t.Run("late subscriber sees current principal", func(t *testing.T) {
		hub := NewHub()
		hub.SignIn(testPrincipal("alice"))

		var events []Event
		cancel := hub.Subscribe(func(ev Event) {
			events = append(events, ev)
		})
		defer cancel()

		require.Len(t, events, 1)
		require.NotNil(t, events[0].Principal)
		require.Equal(t, "alice", events[0].Principal.Subject)
	})
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub()

	var first, second []Event
	cancel1 := hub.Subscribe(func(ev Event) { first = append(first, ev) })
	defer cancel1()
	cancel2 := hub.Subscribe(func(ev Event) { second = append(second, ev) })
	defer cancel2()

	hub.SignIn(testPrincipal("alice"))
	hub.SignOut()

	// replay + sign-in + sign-out
	require.Len(t, first, 3)
	require.Len(t, second, 3)
	require.True(t, first[2].Anonymous())
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := NewHub()

	var events []Event
	cancel := hub.Subscribe(func(ev Event) { events = append(events, ev) })

	cancel()
	cancel() // safe to call twice

	hub.SignIn(testPrincipal("alice"))

	require.Len(t, events, 1) // only the replay
}

func TestHub_NilSignInTreatedAsSignOut(t *testing.T) {
	hub := NewHub()
	hub.SignIn(testPrincipal("alice"))

	hub.SignIn(nil)

	var events []Event
	cancel := hub.Subscribe(func(ev Event) { events = append(events, ev) })
	defer cancel()

	require.Len(t, events, 1)
	require.True(t, events[0].Anonymous())
}

func TestHub_ReplayOrderedAgainstConcurrentPublish(t *testing.T) {
	// A subscriber registering while sign-ins are being published must
	// see its replay first and never an older event after a newer one.
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.SignIn(&models.Principal{
				ID:       uuid.Must(uuid.NewV7()),
				Subject:  "alice",
				IssuedAt: time.Unix(int64(i), 0),
			})
		}
	}()

	for i := 0; i < 20; i++ {
		var mu sync.Mutex
		var seen []int64
		cancel := hub.Subscribe(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			if ev.Principal != nil {
				seen = append(seen, ev.Principal.IssuedAt.Unix())
			}
		})

		mu.Lock()
		for j := 1; j < len(seen); j++ {
			require.GreaterOrEqual(t, seen[j], seen[j-1])
		}
		mu.Unlock()
		cancel()
	}

	<-done
}

func TestHub_UnsubscribeFromWithinCallback(t *testing.T) {
	hub := NewHub()

	var cancel func()
	count := 0
	cancel = hub.Subscribe(func(ev Event) {
		count++
		if !ev.Anonymous() {
			cancel()
		}
	})

	hub.SignIn(testPrincipal("alice"))
	hub.SignOut()

	require.Equal(t, 2, count) // replay + sign-in, nothing after cancel
}

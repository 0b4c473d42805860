package core

import (
	"context"
	"testing"
	"time"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/store/sqlite"
)

const testAdminPassword = "hunter2secret"

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	digest, err := auth.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("failed to hash admin password: %v", err)
	}

	hub := NewHub(Options{
		AdminName:         "Admin",
		AdminPasswordHash: digest,
		Tokens: &auth.TokenConfig{
			Secret: []byte("test-secret-change-me"),
			Issuer: "test",
			TTL:    time.Hour,
		},
		Store: st,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub
}

func connect(hub *Hub) *Client {
	c := NewClient()
	hub.Register(c)
	return c
}

func join(hub *Hub, c *Client, name, password string) {
	hub.Submit(Command{Kind: CommandJoin, Client: c, Name: name, Password: password})
}

// mustEvent waits for an event of the given kind, skipping others.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed before receiving kind %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
		}
	}
}

// mustClosed waits for the event channel to be closed by the hub.
func mustClosed(t *testing.T, ch <-chan *Event) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("expected event channel to be closed")
		}
	}
}

// assertNoEvent drains the channel briefly and fails if the kind shows up.
func assertNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	timeout := time.After(150 * time.Millisecond)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		case <-timeout:
			return
		}
	}
}

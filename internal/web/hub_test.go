package web

import (
	"context"
	"testing"
	"time"
)

func TestHubBroadcastReachesRoomMembers(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := newClient(hub, nil, "7", "u1")
	bob := newClient(hub, nil, "7", "u2")
	carol := newClient(hub, nil, "9", "u3")
	hub.register <- alice
	hub.register <- bob
	hub.register <- carol

	hub.Broadcast("7", []byte("hello"))

	for _, c := range []*Client{alice, bob} {
		select {
		case got := <-c.send:
			if string(got) != "hello" {
				t.Fatalf("received %q, want %q", got, "hello")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
	select {
	case payload := <-carol.send:
		t.Fatalf("client in another room received %q", payload)
	default:
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := newClient(hub, nil, "7", "u1")
	bob := newClient(hub, nil, "7", "u2")
	hub.register <- alice
	hub.register <- bob

	hub.unregister <- alice

	// The hub closes the send channel once the client is dropped.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-alice.send:
			if !ok {
				goto dropped
			}
		case <-deadline:
			t.Fatal("timed out waiting for the client to be dropped")
		}
	}

dropped:
	hub.Broadcast("7", []byte("again"))
	select {
	case got, ok := <-bob.send:
		if !ok || string(got) != "again" {
			t.Fatalf("received %q (ok=%v), want %q", got, ok, "again")
		}
	case <-time.After(time.Second):
		t.Fatal("remaining client should still receive broadcasts")
	}
}

func TestHubDropsStalledClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// No buffer and no reader: the fan-out cannot deliver and the hub must
	// cut the client loose instead of blocking.
	stalled := &Client{hub: hub, send: make(chan []byte), requestID: "7", userID: "u1"}
	hub.register <- stalled

	hub.Broadcast("7", []byte("x"))
	time.Sleep(100 * time.Millisecond)

	select {
	case _, ok := <-stalled.send:
		if ok {
			t.Fatal("expected a closed channel, got a delivery")
		}
	case <-time.After(time.Second):
		t.Fatal("stalled client was never dropped")
	}
}

package main

import (
	"testing"
)

func TestHubSendToUser(t *testing.T) {
	h := newHub()

	c1 := &notifyClient{userID: 1, send: make(chan NotifyEvent, 2)}
	c2 := &notifyClient{userID: 1, send: make(chan NotifyEvent, 2)}
	other := &notifyClient{userID: 2, send: make(chan NotifyEvent, 2)}
	h.register(c1)
	h.register(c2)
	h.register(other)

	h.sendToUser(1, NotifyEvent{Type: "match", From: 2})

	// Both connections of the same user receive the event
	for i, c := range []*notifyClient{c1, c2} {
		select {
		case evt := <-c.send:
			if evt.Type != "match" || evt.From != 2 {
				t.Errorf("client %d got unexpected event %+v", i, evt)
			}
		default:
			t.Errorf("client %d received nothing", i)
		}
	}

	// The other user gets nothing
	select {
	case evt := <-other.send:
		t.Errorf("unrelated user received %+v", evt)
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := newHub()
	c := &notifyClient{userID: 7, send: make(chan NotifyEvent, 1)}
	h.register(c)

	h.sendToUser(7, NotifyEvent{Type: "friend_request", From: 1})
	// Buffer is full now; this one must be dropped, not block
	h.sendToUser(7, NotifyEvent{Type: "friend_request", From: 2})

	evt := <-c.send
	if evt.From != 1 {
		t.Errorf("expected first event to survive, got %+v", evt)
	}
	select {
	case evt := <-c.send:
		t.Errorf("expected overflow event dropped, got %+v", evt)
	default:
	}
}

func TestHubUnregister(t *testing.T) {
	h := newHub()
	c := &notifyClient{userID: 3, send: make(chan NotifyEvent, 1)}
	h.register(c)
	h.unregister(c)

	h.sendToUser(3, NotifyEvent{Type: "match"})
	select {
	case evt := <-c.send:
		t.Errorf("unregistered client received %+v", evt)
	default:
	}

	// Unregistering twice is harmless
	h.unregister(c)
}

package httpapi

import (
	"encoding/json"
	"testing"
	"time"

	"pkt.systems/tabshell/desktopsync"
)

func hubMessage(seq uint64) desktopsync.Message {
	return desktopsync.Message{Seq: seq, Channel: "ui:onMaximized", Payload: json.RawMessage("true")}
}

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(10, nil)
	window, unsubWindow := hub.Subscribe(AudienceWindow)
	defer unsubWindow()
	surface, unsubSurface := hub.Subscribe(AudienceSurface)

	if counts := hub.Counts(); counts[AudienceWindow] != 1 || counts[AudienceSurface] != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	hub.Broadcast(hubMessage(1))
	for _, ch := range []<-chan desktopsync.Message{window, surface} {
		select {
		case msg := <-ch:
			if msg.Seq != 1 {
				t.Fatalf("unexpected message %+v", msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message")
		}
	}

	unsubSurface()
	unsubSurface()
	if _, ok := <-surface; ok {
		t.Fatalf("expected closed channel after unsubscribe")
	}
	hub.Broadcast(hubMessage(2))
	if counts := hub.Counts(); counts[AudienceSurface] != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestHubReplayIsBounded(t *testing.T) {
	hub := NewHub(3, nil)
	for seq := uint64(1); seq <= 5; seq++ {
		hub.Broadcast(hubMessage(seq))
	}
	replay := hub.Replay(0)
	if len(replay) != 3 || replay[0].Seq != 3 || replay[2].Seq != 5 {
		t.Fatalf("unexpected replay %+v", replay)
	}
	if got := hub.Replay(4); len(got) != 1 || got[0].Seq != 5 {
		t.Fatalf("unexpected replay after 4: %+v", got)
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1000, nil)
	ch, unsub := hub.Subscribe(AudienceWindow)
	defer unsub()
	for seq := uint64(1); seq <= 300; seq++ {
		hub.Broadcast(hubMessage(seq))
	}
	if got := len(ch); got != cap(ch) {
		t.Fatalf("expected full buffer, got %d of %d", got, cap(ch))
	}
}

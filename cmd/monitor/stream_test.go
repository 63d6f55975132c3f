package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"outbreak/internal/domain"
)

func TestStreamURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8092": "ws://localhost:8092/events/ws",
		"https://example.org":   "wss://example.org/events/ws",
		"localhost:8092":        "ws://localhost:8092/events/ws",
	}
	for in, want := range cases {
		if got := streamURL(in); got != want {
			t.Fatalf("streamURL(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestFollowEventsUntilNormalClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 1; i <= 3; i++ {
			_ = conn.WriteJSON(domain.Event{Seq: uint64(i), Kind: domain.EventMoveExecuted})
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var seqs []uint64
	err := followEvents(ctx, streamURL(srv.URL), func(ev domain.Event) {
		seqs = append(seqs, ev.Seq)
	})
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[2] != 3 {
		t.Fatalf("seqs=%v", seqs)
	}
}

func TestFollowEventsRejectsGarbage(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := followEvents(ctx, streamURL(srv.URL), func(domain.Event) {}); err == nil {
		t.Fatalf("expected decode error")
	}
}

package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"outbreak/internal/domain"
	"outbreak/internal/messaging/inproc"
)

type watchedBus struct {
	*inproc.Bus
	registered chan string
}

func (w watchedBus) Register(name string) (<-chan domain.Event, error) {
	ch, err := w.Bus.Register(name)
	if err == nil {
		w.registered <- name
	}
	return ch, err
}

func TestEventStreamDeliversLiveEvents(t *testing.T) {
	a, _ := newTestAPI(t)
	bus := watchedBus{Bus: inproc.New(16), registered: make(chan string, 1)}
	a.events = bus

	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case name := <-bus.registered:
		if !strings.HasPrefix(name, "ws-") {
			t.Fatalf("subscriber=%q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream never subscribed")
	}

	bus.Publish(domain.Event{RunID: "run-1", Seq: 7, Kind: domain.EventMoveExecuted, Message: "moved"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domain.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Seq != 7 || ev.Kind != domain.EventMoveExecuted || ev.Message != "moved" {
		t.Fatalf("event=%+v", ev)
	}

	bus.Close()
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("err=%v want normal closure", err)
	}
}

func TestEventStreamDisabledWithoutBus(t *testing.T) {
	a, _ := newTestAPI(t)
	if code := getJSON(t, a.routes(), "/events/ws", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=%d", code, http.StatusServiceUnavailable)
	}
}

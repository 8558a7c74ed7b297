package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/sim"
)

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", hub.Clients())
	}

	cfg := sim.DefaultConfig()
	cfg.ForceMode = sim.ForceDirect
	w, err := sim.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.Spawn(body.BlackHole, sim.SpawnParams{Mass: 100})
	w.Spawn(body.Comet, sim.SpawnParams{Pos: r2.Vec{X: 2}, Mass: 1})
	w.Step(0.01)

	if err := hub.Publish(NewFrame(w, w.Events(), false)); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatal(err)
	}
	if f.Tick != 1 || len(f.Bodies) != 1 || f.Bodies[0].Type != body.BlackHole {
		t.Errorf("frame = %+v", f)
	}
	if len(f.Events) != 1 || f.Events[0].Kind != "absorption" {
		t.Errorf("events = %+v", f.Events)
	}
	if f.Bodies[0].Trail != nil {
		t.Error("trail included without withTrails")
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	if err := hub.Publish(Frame{Tick: 3}); err != nil {
		t.Errorf("Publish = %v", err)
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newClient(id string, topics ...string) *Client {
	return &Client{ID: id, Topics: topics, Send: make(chan []byte, 256)}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("client %s did not receive event", c.ID)
	}
	return Event{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("board-1", "facility:ed-north")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount("facility:ed-north") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.TopicCount("facility:ed-north"))
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.TopicCount("facility:ed-north") != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.TopicCount("facility:ed-north"))
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed after unregister")
	}

	// second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_PublishOnlyReachesSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c1 := newClient("c1", "watch:w1")
	c2 := newClient("c2", "watch:w1", "facility:f1")
	c3 := newClient("c3", "facility:f2")
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	var publisher EventPublisher = hub
	err := publisher.Publish(context.Background(), Event{
		Type:      "alert.changed",
		Topic:     "watch:w1",
		Timestamp: time.Now(),
		Data:      json.RawMessage(`{"alert_status":"RED"}`),
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for _, c := range []*Client{c1, c2} {
		ev := receive(t, c)
		if ev.Type != "alert.changed" || ev.Topic != "watch:w1" {
			t.Fatalf("client %s: unexpected event %+v", c.ID, ev)
		}
		var payload map[string]string
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if payload["alert_status"] != "RED" {
			t.Fatalf("expected RED payload, got %v", payload)
		}
	}

	select {
	case <-c3.Send:
		t.Fatal("c3 should not have received event for watch:w1")
	default:
	}
}

func TestHub_PublishToEmptyTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	if err := hub.Publish(context.Background(), Event{Type: "alert.changed", Topic: "nobody"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{ID: "slow", Topics: []string{"t"}, Send: make(chan []byte, 1)}
	hub.Register(client)

	for i := 0; i < 3; i++ {
		if err := hub.Publish(context.Background(), Event{Type: "alert.changed", Topic: "t"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if len(client.Send) != 1 {
		t.Fatalf("expected 1 buffered message, got %d", len(client.Send))
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("dyn", "facility:a", "watch:b", "watch:c")
	hub.Register(client)

	hub.Unsubscribe(client, []string{"facility:a", "watch:c"})
	if hub.TopicCount("facility:a") != 0 || hub.TopicCount("watch:c") != 0 {
		t.Fatal("expected unsubscribed topics to be empty")
	}
	if hub.TopicCount("watch:b") != 1 {
		t.Fatalf("expected 1 on watch:b, got %d", hub.TopicCount("watch:b"))
	}
	if len(client.Topics) != 1 || client.Topics[0] != "watch:b" {
		t.Fatalf("unexpected remaining topics %v", client.Topics)
	}

	hub.Subscribe(client, []string{"facility:z"})
	if hub.TopicCount("facility:z") != 1 {
		t.Fatalf("expected 1 on facility:z, got %d", hub.TopicCount("facility:z"))
	}
	if len(client.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %v", client.Topics)
	}
}

func TestHub_ProcessMessage(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("proc")
	hub.Register(client)

	var msg ClientMessage
	if err := json.Unmarshal([]byte(`{"action":"subscribe","topics":["watch:1","facility:2"]}`), &msg); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	hub.ProcessMessage(client, msg)
	if hub.TopicCount("watch:1") != 1 || hub.TopicCount("facility:2") != 1 {
		t.Fatal("expected subscriptions after subscribe message")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"watch:1"}})
	if hub.TopicCount("watch:1") != 0 {
		t.Fatal("expected watch:1 to be empty after unsubscribe message")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "bogus", Topics: []string{"x"}})
	if hub.TopicCount("x") != 0 {
		t.Fatal("unknown action should be ignored")
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	const n = 100

	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newClient("c", "facility:busy")
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Register(c)
			_ = hub.Publish(context.Background(), Event{Type: "alert.changed", Topic: "facility:busy"})
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.TopicCount("facility:busy") != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.TopicCount("facility:busy"))
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(NewHub(zerolog.Nop())).RegisterRoutes(e)

	for _, r := range e.Routes() {
		if r.Path == "/ws" && r.Method == http.MethodGet {
			return
		}
	}
	t.Fatal("expected GET /ws route to be registered")
}

func TestHandler_HandleConnectRequiresWebSocket(t *testing.T) {
	handler := NewHandler(NewHub(zerolog.Nop()))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.HandleConnect(c); err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub).RegisterRoutes(e)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topic=facility:ed-1"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	waitFor(t, func() bool { return hub.TopicCount("facility:ed-1") == 1 })

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{"watch:abc"}}); err != nil {
		t.Fatalf("failed to send subscribe: %v", err)
	}
	waitFor(t, func() bool { return hub.TopicCount("watch:abc") == 1 })

	if err := hub.Publish(context.Background(), Event{Type: "alert.changed", Topic: "watch:abc", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != "alert.changed" || received.Topic != "watch:abc" {
		t.Fatalf("unexpected event %+v", received)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

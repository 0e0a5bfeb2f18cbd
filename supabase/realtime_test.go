package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

func TestRealtimeEventAccessors(t *testing.T) {
	modern := &RealtimeEvent{
		Event:   "postgres_changes",
		Payload: []byte(`{"data":{"type":"INSERT","table":"orders","record":{"id":"o1"}},"ids":[1]}`),
	}
	if modern.ChangeType() != "INSERT" {
		t.Fatalf("ChangeType = %q", modern.ChangeType())
	}
	if got := gjson.GetBytes(modern.Record(), "id").String(); got != "o1" {
		t.Fatalf("record id = %q", got)
	}

	legacy := &RealtimeEvent{
		Event:   "INSERT",
		Payload: []byte(`{"type":"INSERT","record":{"id":"o2"}}`),
	}
	if legacy.ChangeType() != "INSERT" {
		t.Fatalf("ChangeType = %q", legacy.ChangeType())
	}
	if got := gjson.GetBytes(legacy.Record(), "id").String(); got != "o2" {
		t.Fatalf("record id = %q", got)
	}

	reply := &RealtimeEvent{Event: "phx_reply", Payload: []byte(`{"status":"ok"}`)}
	if reply.ChangeType() != "phx_reply" || reply.Record() != nil {
		t.Fatalf("unexpected reply accessors")
	}
}

func TestRealtimeSubscribeAndDispatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "anon-key" {
			t.Errorf("apikey = %q", r.URL.Query().Get("apikey"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		joined <- string(msg)

		push := `{"topic":"realtime:public:orders","event":"postgres_changes","ref":null,` +
			`"payload":{"data":{"type":"INSERT","table":"orders","record":{"id":"o-77","total_amount":"320"}}}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(push))

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/v1/websocket"
	rt := NewRealtimeClient(endpoint, "anon-key")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rt.Disconnect()

	records := make(chan string, 1)
	_, err := rt.SubscribeToPostgresChanges(ctx, PostgresChangesConfig{Event: "INSERT", Table: "orders"}, func(ev *RealtimeEvent) {
		records <- gjson.GetBytes(ev.Record(), "id").String()
	})
	if err != nil {
		t.Fatalf("SubscribeToPostgresChanges: %v", err)
	}

	select {
	case msg := <-joined:
		if gjson.Get(msg, "event").String() != "phx_join" {
			t.Fatalf("unexpected join: %s", msg)
		}
		if gjson.Get(msg, "topic").String() != "realtime:public:orders" {
			t.Fatalf("unexpected topic: %s", msg)
		}
		if gjson.Get(msg, "payload.config.postgres_changes.0.table").String() != "orders" {
			t.Fatalf("unexpected join payload: %s", msg)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for join")
	}

	select {
	case id := <-records:
		if id != "o-77" {
			t.Fatalf("record id = %q", id)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for event")
	}
}

func TestRealtimeSubscribeRequiresConnection(t *testing.T) {
	rt := NewRealtimeClient("ws://127.0.0.1:1/realtime/v1/websocket", "k")
	_, err := rt.SubscribeToPostgresChanges(context.Background(), PostgresChangesConfig{Table: "orders"}, func(*RealtimeEvent) {})
	if err == nil {
		t.Fatalf("expected not connected error")
	}
}

func TestRealtimeDoneClosesOnServerHangup(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	rt := NewRealtimeClient("ws"+strings.TrimPrefix(srv.URL, "http"), "k")
	if err := rt.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	done := rt.Done()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Done not closed after hangup")
	}
}

func TestServiceRealtimeSendsAccessToken(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "service-key" {
			t.Errorf("apikey = %q", r.URL.Query().Get("apikey"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, msg, err := conn.ReadMessage(); err == nil {
			joined <- string(msg)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client, err := New(Config{ProjectURL: srv.URL, AnonKey: "anon-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.ServiceRealtime(); err == nil {
		t.Fatalf("expected error without service key")
	}

	client, err = New(Config{ProjectURL: srv.URL, AnonKey: "anon-key", ServiceKey: "service-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rt, err := client.ServiceRealtime()
	if err != nil {
		t.Fatalf("ServiceRealtime: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rt.Disconnect()

	if _, err := rt.SubscribeToPostgresChanges(ctx, PostgresChangesConfig{Event: "INSERT", Table: "orders"}, func(*RealtimeEvent) {}); err != nil {
		t.Fatalf("SubscribeToPostgresChanges: %v", err)
	}

	select {
	case msg := <-joined:
		if got := gjson.Get(msg, "payload.access_token").String(); got != "service-key" {
			t.Fatalf("access_token = %q", got)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for join")
	}
}

package orderfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/snapzone/storefront/supabase"
)

type chanBroadcaster chan []byte

func (c chanBroadcaster) Broadcast(msg []byte) { c <- msg }

func TestEncode(t *testing.T) {
	msg, err := Encode([]byte(`{"id":"o-1","user_id":"guest","total_amount":320,"status":"pending","shipping_address":"Asha, 98765","payment_id":"cash_on_delivery"}`))
	require.NoError(t, err)
	assert.Equal(t, MessageOrderCreated, gjson.GetBytes(msg, "type").String())
	assert.Equal(t, "o-1", gjson.GetBytes(msg, "order.id").String())
	assert.Equal(t, "320", gjson.GetBytes(msg, "order.total_amount").String())

	_, err = Encode(nil)
	assert.Error(t, err)
	_, err = Encode([]byte(`{"user_id":"guest"}`))
	assert.Error(t, err)
}

func TestFeedForwardsInsertsAndReconnects(t *testing.T) {
	var conns atomic.Int32
	joins := make(chan string, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("apikey"); got != "service-key" {
			t.Errorf("apikey = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)

		_, join, err := conn.ReadMessage()
		if err != nil {
			return
		}
		joins <- string(join)

		if n == 1 {
			push := `{"topic":"realtime:public:orders","event":"postgres_changes","ref":null,` +
				`"payload":{"data":{"type":"INSERT","table":"orders","record":{"id":"o-9","user_id":"guest","total_amount":"250"}}}}`
			_ = conn.WriteMessage(websocket.TextMessage, []byte(push))
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client, err := supabase.New(supabase.Config{ProjectURL: srv.URL, AnonKey: "anon-key", ServiceKey: "service-key"})
	require.NoError(t, err)

	out := make(chanBroadcaster, 4)
	feed := NewFeed(client, out, testLogger())
	feed.MinBackoff = 10 * time.Millisecond
	feed.MaxBackoff = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	select {
	case msg := <-out:
		assert.Equal(t, "o-9", gjson.GetBytes(msg, "order.id").String())
		assert.Equal(t, MessageOrderCreated, gjson.GetBytes(msg, "type").String())
	case <-time.After(5 * time.Second):
		t.Fatal("no order forwarded")
	}

	join := <-joins
	assert.Equal(t, "orders", gjson.Get(join, "payload.config.postgres_changes.0.table").String())
	assert.Equal(t, "INSERT", gjson.Get(join, "payload.config.postgres_changes.0.event").String())
	assert.Equal(t, "service-key", gjson.Get(join, "payload.access_token").String())

	require.Eventually(t, func() bool { return conns.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const heartbeatInterval = 30 * time.Second

// RealtimeClient handles Supabase Realtime subscriptions over a single
// Phoenix websocket.
type RealtimeClient struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	url      string
	conn     *websocket.Conn
	channels map[string]*Channel
	handlers map[string][]EventHandler
	done     chan struct{}
	ref      int

	// accessToken is sent with every join so row level security sees the
	// subscriber's role.
	accessToken string
}

// EventHandler handles realtime events. Handlers run on the read loop and
// must not block.
type EventHandler func(event *RealtimeEvent)

// RealtimeEvent is one message pushed by the realtime server.
type RealtimeEvent struct {
	Event   string          `json:"event"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

// ChangeType returns INSERT, UPDATE or DELETE for postgres change events.
func (e *RealtimeEvent) ChangeType() string {
	if t := gjson.GetBytes(e.Payload, "data.type"); t.Exists() {
		return t.String()
	}
	if t := gjson.GetBytes(e.Payload, "type"); t.Exists() {
		return t.String()
	}
	return e.Event
}

// Record returns the new row carried by a change event.
func (e *RealtimeEvent) Record() []byte {
	if r := gjson.GetBytes(e.Payload, "data.record"); r.Exists() {
		return []byte(r.Raw)
	}
	if r := gjson.GetBytes(e.Payload, "record"); r.Exists() {
		return []byte(r.Raw)
	}
	return nil
}

// Channel represents a realtime channel.
type Channel struct {
	client  *RealtimeClient
	topic   string
	joined  bool
	joinRef string
}

// PostgresChangesConfig configures a postgres_changes subscription.
type PostgresChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE, *
	Schema string
	Table  string
	Filter string // Optional filter like "id=eq.1"
}

// NewRealtimeClient creates a realtime client for a websocket endpoint
// (wss://<project>/realtime/v1/websocket).
func NewRealtimeClient(endpoint, apiKey string) *RealtimeClient {
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", "1.0.0")

	return &RealtimeClient{
		url:      endpoint + "?" + q.Encode(),
		channels: make(map[string]*Channel),
		handlers: make(map[string][]EventHandler),
		done:     make(chan struct{}),
	}
}

// SetAccessToken sets the token sent when joining channels.
func (r *RealtimeClient) SetAccessToken(token string) {
	r.mu.Lock()
	r.accessToken = token
	r.mu.Unlock()
}

// Connect establishes the websocket connection and starts the read loop and
// heartbeat.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})
	for _, ch := range r.channels {
		ch.joined = false
	}

	go r.handleMessages(conn, r.done)
	go r.heartbeat(r.done)

	return nil
}

// Done is closed when the current connection ends, by Disconnect or by a
// read failure.
func (r *RealtimeClient) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Disconnect closes the websocket connection.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()
	conn := r.conn
	r.closeLocked()
	r.mu.Unlock()

	if conn == nil {
		return nil
	}

	r.writeMu.Lock()
	err := conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	r.writeMu.Unlock()
	conn.Close()
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

func (r *RealtimeClient) closeLocked() {
	if r.conn == nil {
		return
	}
	r.conn = nil
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// Channel returns or creates a channel.
func (r *RealtimeClient) Channel(topic string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[topic]; ok {
		return ch
	}

	ch := &Channel{
		client: r,
		topic:  topic,
	}
	r.channels[topic] = ch
	return ch
}

// SubscribeToPostgresChanges joins a channel streaming row changes of one table.
func (r *RealtimeClient) SubscribeToPostgresChanges(ctx context.Context, cfg PostgresChangesConfig, handler EventHandler) (*Channel, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	ch := r.Channel(topic)
	if cfg.Event == "*" {
		ch.On("INSERT", handler).On("UPDATE", handler).On("DELETE", handler)
	} else {
		ch.On(cfg.Event, handler)
	}

	change := map[string]any{
		"event":  cfg.Event,
		"schema": cfg.Schema,
		"table":  cfg.Table,
	}
	if cfg.Filter != "" {
		change["filter"] = cfg.Filter
	}
	payload := map[string]any{
		"config": map[string]any{
			"postgres_changes": []any{change},
		},
	}

	if err := ch.join(ctx, payload); err != nil {
		return nil, err
	}
	return ch, nil
}

// On registers an event handler.
func (c *Channel) On(event string, handler EventHandler) *Channel {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()

	key := c.topic + ":" + event
	c.client.handlers[key] = append(c.client.handlers[key], handler)
	return c
}

func (c *Channel) join(ctx context.Context, payload map[string]any) error {
	r := c.client

	r.mu.Lock()
	if c.joined {
		r.mu.Unlock()
		return nil
	}
	if r.conn == nil {
		r.mu.Unlock()
		return fmt.Errorf("realtime not connected")
	}
	r.ref++
	ref := strconv.Itoa(r.ref)
	c.joinRef = ref
	conn := r.conn
	if _, ok := payload["access_token"]; !ok && r.accessToken != "" {
		payload["access_token"] = r.accessToken
	}
	r.mu.Unlock()

	msg := map[string]any{
		"topic":    c.topic,
		"event":    "phx_join",
		"payload":  payload,
		"ref":      ref,
		"join_ref": ref,
	}
	if err := r.write(ctx, conn, msg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	r.mu.Lock()
	c.joined = true
	r.mu.Unlock()
	return nil
}

func (r *RealtimeClient) write(ctx context.Context, conn *websocket.Conn, msg any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteJSON(msg)
}

func (r *RealtimeClient) handleMessages(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		if r.conn == conn {
			r.closeLocked()
		}
		r.mu.Unlock()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		select {
		case <-done:
			return
		default:
		}

		var event RealtimeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		r.dispatchEvent(&event)
	}
}

func (r *RealtimeClient) dispatchEvent(event *RealtimeEvent) {
	key := event.Topic + ":" + event.ChangeType()

	r.mu.Lock()
	handlers := append([]EventHandler(nil), r.handlers[key]...)
	r.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (r *RealtimeClient) heartbeat(done chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			conn := r.conn
			r.ref++
			ref := strconv.Itoa(r.ref)
			r.mu.Unlock()
			if conn == nil {
				return
			}
			msg := map[string]any{
				"topic":   "phoenix",
				"event":   "heartbeat",
				"payload": map[string]any{},
				"ref":     ref,
			}
			_ = r.write(context.Background(), conn, msg)
		}
	}
}

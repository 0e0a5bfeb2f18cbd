package orderfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/snapzone/storefront/internal/checkout"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/supabase"
)

// MessageOrderCreated is the type of every message sent to consoles.
const MessageOrderCreated = "order.created"

// Message is the JSON pushed to a console for each new order.
type Message struct {
	Type  string         `json:"type"`
	Order checkout.Order `json:"order"`
}

// Broadcaster receives encoded messages.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Feed subscribes to order inserts through Supabase Realtime and forwards
// them to a Broadcaster, reconnecting with backoff when the stream drops.
type Feed struct {
	client *supabase.Client
	out    Broadcaster
	logger *logging.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewFeed creates a feed. The service key is used when configured so inserts
// hidden by row level security are still delivered.
func NewFeed(client *supabase.Client, out Broadcaster, logger *logging.Logger) *Feed {
	return &Feed{
		client:     client,
		out:        out,
		logger:     logger,
		MinBackoff: time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

// Run streams until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	delay := f.MinBackoff
	for {
		subscribed, err := f.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			delay = f.MinBackoff
		}
		f.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"retry_in": delay.String(),
		}).Warn("Order feed disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.MaxBackoff {
			delay = f.MaxBackoff
		}
	}
}

func (f *Feed) realtime() (*supabase.RealtimeClient, error) {
	if f.client.HasServiceKey() {
		return f.client.ServiceRealtime()
	}
	return f.client.Realtime(), nil
}

// stream runs one connection. subscribed reports whether the join was sent.
func (f *Feed) stream(ctx context.Context) (subscribed bool, err error) {
	rt, err := f.realtime()
	if err != nil {
		return false, err
	}
	if err := rt.Connect(ctx); err != nil {
		return false, fmt.Errorf("connect realtime: %w", err)
	}
	defer rt.Disconnect()

	_, err = rt.SubscribeToPostgresChanges(ctx, supabase.PostgresChangesConfig{
		Event:  "INSERT",
		Schema: "public",
		Table:  checkout.OrdersTable,
	}, func(ev *supabase.RealtimeEvent) {
		f.handle(ctx, ev)
	})
	if err != nil {
		return false, fmt.Errorf("subscribe orders: %w", err)
	}
	f.logger.WithContext(ctx).Info("Order feed subscribed")

	select {
	case <-ctx.Done():
		return true, nil
	case <-rt.Done():
		return true, errors.New("realtime connection closed")
	}
}

func (f *Feed) handle(ctx context.Context, ev *supabase.RealtimeEvent) {
	msg, err := Encode(ev.Record())
	if err != nil {
		f.logger.WithContext(ctx).WithError(err).Warn("Dropping order feed event")
		return
	}
	f.out.Broadcast(msg)
}

// Encode turns an inserted orders row into a console message.
func Encode(record []byte) ([]byte, error) {
	if len(record) == 0 || !gjson.GetBytes(record, "id").Exists() {
		return nil, errors.New("order record without id")
	}
	var o checkout.Order
	if err := json.Unmarshal(record, &o); err != nil {
		return nil, fmt.Errorf("decode order record: %w", err)
	}
	return json.Marshal(Message{Type: MessageOrderCreated, Order: o})
}

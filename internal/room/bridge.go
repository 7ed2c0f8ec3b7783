package room

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventChannelPrefix = "room:"
	closeChannelPrefix = "room-closed:"
)

// Bridge routes broadcasts through Redis pub/sub so several API processes
// can share one set of rooms. Membership stays local to each process; only
// the event stream crosses the wire. Delivery through the bridge is
// at-least-once: a client joining on one instance while an event published
// on another is still in flight may see that event both in its catch-up
// snapshot and again from the channel.
type Bridge struct {
	hub    *Hub
	client *redis.Client
	sub    *redis.PubSub
}

// NewBridge connects to Redis, subscribes to all room channels and starts
// feeding received events into the local hub.
func NewBridge(redisURL string, hub *Hub) (*Bridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	b := &Bridge{
		hub:    hub,
		client: client,
		sub:    client.PSubscribe(context.Background(), eventChannelPrefix+"*", closeChannelPrefix+"*"),
	}
	go b.run()
	return b, nil
}

func (b *Bridge) run() {
	for msg := range b.sub.Channel() {
		switch {
		case strings.HasPrefix(msg.Channel, eventChannelPrefix):
			code := strings.TrimPrefix(msg.Channel, eventChannelPrefix)
			b.hub.Broadcast(code, []byte(msg.Payload))
		case strings.HasPrefix(msg.Channel, closeChannelPrefix):
			code := strings.TrimPrefix(msg.Channel, closeChannelPrefix)
			b.hub.CloseRoom(code, []byte(msg.Payload))
		}
	}
}

// Join registers the client with the local hub; membership is per-process.
func (b *Bridge) Join(code string, c *Client, welcome []byte) {
	b.hub.Join(code, c, welcome)
}

// Leave drops the client from the local hub.
func (b *Bridge) Leave(c *Client) {
	b.hub.Leave(c)
}

// Broadcast publishes the event; every subscribed instance, this one
// included, delivers it to its local room members.
func (b *Bridge) Broadcast(code string, payload []byte) {
	if err := b.client.Publish(context.Background(), eventChannelPrefix+code, payload).Err(); err != nil {
		log.Printf("room %s: publish failed: %v", code, err)
	}
}

// CloseRoom publishes the close marker so every instance evicts the room.
func (b *Bridge) CloseRoom(code string, farewell []byte) {
	if err := b.client.Publish(context.Background(), closeChannelPrefix+code, farewell).Err(); err != nil {
		log.Printf("room %s: publish close failed: %v", code, err)
	}
}

// Close tears down the subscription and the Redis connection.
func (b *Bridge) Close() error {
	_ = b.sub.Close()
	return b.client.Close()
}

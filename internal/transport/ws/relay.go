package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRelayChannel = "chatwave:rooms"

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Room   uuid.UUID       `json:"room"`
	Data   json.RawMessage `json:"data"`
}

// RedisRelay shares room emits between server instances over Redis pub/sub.
// Every instance publishes its emits and re-delivers the ones published by
// other instances to its local connections.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, room uuid.UUID, data []byte) error {
	payload, err := r.encode(room, data)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Run subscribes to the relay channel and hands foreign emits to hub until
// ctx is done.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			room, data, foreign := r.decode(msg.Payload)
			if foreign {
				hub.DeliverRemote(room, data)
			}
		}
	}
}

func (r *RedisRelay) encode(room uuid.UUID, data []byte) ([]byte, error) {
	return json.Marshal(relayEnvelope{Origin: r.instanceID, Room: room, Data: data})
}

// decode reports foreign=false for malformed payloads and for emits this
// instance published itself.
func (r *RedisRelay) decode(payload string) (uuid.UUID, []byte, bool) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("ws relay: malformed payload", "error", err)
		return uuid.Nil, nil, false
	}
	if env.Origin == r.instanceID {
		return uuid.Nil, nil, false
	}
	return env.Room, env.Data, true
}

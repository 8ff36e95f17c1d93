package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker is the part of the Redis client the bridge uses.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

const (
	targetUser = "user"
	targetTask = "task"
)

type busMessage struct {
	Target string          `json:"target"`
	ID     uint            `json:"id"`
	Except uint            `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBridge publishes events on a Redis channel so every instance delivers
// them to its own connections.
type RedisBridge struct {
	hub     *Hub
	broker  Broker
	channel string
}

func NewRedisBridge(hub *Hub, broker Broker, channel string) *RedisBridge {
	return &RedisBridge{hub: hub, broker: broker, channel: channel}
}

func (b *RedisBridge) NotifyUser(userID uint, event string, data interface{}) {
	frame, ok := encode(event, data)
	if !ok {
		return
	}
	b.publish(busMessage{Target: targetUser, ID: userID, Frame: frame})
}

func (b *RedisBridge) BroadcastTask(taskID uint, event string, data interface{}, exceptUserID uint) {
	frame, ok := encode(event, data)
	if !ok {
		return
	}
	b.publish(busMessage{Target: targetTask, ID: taskID, Except: exceptUserID, Frame: frame})
}

// publish falls back to local delivery when Redis is unreachable.
func (b *RedisBridge) publish(m busMessage) {
	payload, err := json.Marshal(m)
	if err == nil {
		err = b.broker.Publish(context.Background(), b.channel, payload).Err()
	}
	if err != nil {
		zap.L().Warn("realtime: publish failed, delivering locally", zap.Error(err))
		b.dispatch(m)
	}
}

// Run relays channel messages to the local hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.broker.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	zap.L().Info("realtime: subscribed", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handlePayload([]byte(msg.Payload))
		}
	}
}

func (b *RedisBridge) handlePayload(payload []byte) {
	var m busMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		zap.L().Warn("realtime: bad bus message", zap.Error(err))
		return
	}
	b.dispatch(m)
}

func (b *RedisBridge) dispatch(m busMessage) {
	switch m.Target {
	case targetUser:
		b.hub.deliverUser(m.ID, m.Frame)
	case targetTask:
		b.hub.deliverTask(m.ID, m.Frame, m.Except)
	}
}

package redis

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/logger"
)

// DefaultRelayChannel carries balance changes between service instances.
const DefaultRelayChannel = "points:balance-changes"

// Relay mirrors a local app.Hub over Redis pub/sub so live leaderboard
// subscribers on every instance see every balance change.
type Relay struct {
	client  *redis.Client
	hub     *app.Hub
	channel string
	origin  string
	log     *logger.Logger
}

type relayMessage struct {
	Origin string            `json:"origin"`
	Change app.BalanceChange `json:"change"`
}

func NewRelay(client *redis.Client, hub *app.Hub, channel string, log *logger.Logger) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		client:  client,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

// Start subscribes to the channel and returns once the subscription is live.
// Both directions stop when ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	local, cancel := r.hub.Subscribe()

	go r.inbound(ctx, sub)
	go r.outbound(ctx, local, cancel)
	return nil
}

func (r *Relay) outbound(ctx context.Context, local <-chan app.BalanceChange, cancel func()) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-local:
			if !ok {
				return
			}
			if change.Remote {
				continue
			}
			payload, err := json.Marshal(relayMessage{Origin: r.origin, Change: change})
			if err != nil {
				continue
			}
			if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
				r.log.Warn("relay publish failed", "channel", r.channel, "err", err)
			}
		}
	}
}

func (r *Relay) inbound(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var m relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				r.log.Warn("relay dropped malformed message", "err", err)
				continue
			}
			if m.Origin == r.origin {
				continue
			}
			m.Change.Remote = true
			r.hub.Publish(m.Change)
		}
	}
}

// ============================================================================
// events/redis.go - Redis settlement fan-out
// ============================================================================
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/constants"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore publishes settlements on Pub/Sub and keeps a capped list of the
// most recent ones.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
	max    int64
}

var _ storage.SettlementStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, logger *logrus.Logger) *RedisStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStore{client: client, logger: logger, max: constants.MaxRecentSettlements}
}

// Channels returns the channels an event is published on.
func Channels(ev *models.SettlementEvent) []string {
	channels := []string{constants.PubSubChannelSettled}
	if ev.Strategy != "" {
		channels = append(channels, constants.PubSubChannelStrategyPrefix+ev.Strategy)
	}
	return channels
}

func (r *RedisStore) RecordSettlement(ctx context.Context, ev *models.SettlementEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}

	pipe := r.client.Pipeline()
	for _, channel := range Channels(ev) {
		pipe.Publish(ctx, channel, data)
	}
	pipe.LPush(ctx, constants.RedisKeyRecentSettlements, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentSettlements, 0, r.max-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish settlement: %w", err)
	}
	return nil
}

func (r *RedisStore) RecentSettlements(ctx context.Context, limit int64) ([]*models.SettlementEvent, error) {
	if limit <= 0 || limit > r.max {
		limit = r.max
	}
	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentSettlements, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent settlements: %w", err)
	}

	out := make([]*models.SettlementEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.SettlementEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			r.logger.WithError(err).Warn("skipping unreadable settlement")
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

// Subscribe delivers events from channel to handler until ctx is done.
func (r *RedisStore) Subscribe(ctx context.Context, channel string, handler storage.SettlementHandler) error {
	pubsub := r.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	r.logger.WithField("channel", channel).Info("subscribed to settlements")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.SettlementEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.WithError(err).Warn("error unmarshaling settlement")
				continue
			}
			handler(&ev)
		}
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

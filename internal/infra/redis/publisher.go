package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/loworbit/txtrack/internal/platform/notifier"
)

// DefaultNotificationsChannel is the pub/sub channel indicators are published on
const DefaultNotificationsChannel = "txtrack:notifications"

// NotificationPublisher is a notifier.Sink that publishes indicators as JSON
type NotificationPublisher struct {
	client  *redis.Client
	channel string
}

func NewNotificationPublisher(client *redis.Client, channel string) *NotificationPublisher {
	if channel == "" {
		channel = DefaultNotificationsChannel
	}
	return &NotificationPublisher{client: client, channel: channel}
}

func (p *NotificationPublisher) Show(ctx context.Context, ind notifier.Indicator) error {
	data, err := json.Marshal(ind)
	if err != nil {
		return fmt.Errorf("failed to marshal indicator: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish indicator %s: %w", ind.Key, err)
	}
	return nil
}

var _ notifier.Sink = (*NotificationPublisher)(nil)

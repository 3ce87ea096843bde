package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SettingsChannel is the pub/sub channel announcing settings updates.
const SettingsChannel = "wallet:settings:updated"

// SettingsNotifier implements ports.SettingsNotifier over Redis pub/sub.
type SettingsNotifier struct {
	client *goredis.Client
	log    zerolog.Logger
}

// NewSettingsNotifier creates a notifier on client.
func NewSettingsNotifier(client *goredis.Client, log zerolog.Logger) *SettingsNotifier {
	return &SettingsNotifier{client: client, log: log}
}

// Notify publishes a change announcement.
func (n *SettingsNotifier) Notify(ctx context.Context) error {
	if err := n.client.Publish(ctx, SettingsChannel, "reload").Err(); err != nil {
		return fmt.Errorf("publish settings update: %w", err)
	}
	return nil
}

// Listen calls reload for every announcement until ctx is cancelled.
// The subscription is established before Listen returns.
func (n *SettingsNotifier) Listen(ctx context.Context, reload func(context.Context) error) error {
	sub := n.client.Subscribe(ctx, SettingsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe settings channel: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if err := reload(ctx); err != nil {
					n.log.Warn().Err(err).Msg("failed to reload wallet settings")
					continue
				}
				n.log.Info().Msg("wallet settings reloaded")
			}
		}
	}()
	return nil
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lostfound-board/apiserver/config"
	"github.com/lostfound-board/apiserver/internal/logging"
	"github.com/lostfound-board/apiserver/internal/mq"
	"github.com/lostfound-board/apiserver/internal/services"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume item events and emit poster notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.Setup(cfg.Log.Format, cfg.Log.Level)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.New(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("worker needs MQ_BACKEND to be rabbitmq or pubsub")
		}
		defer broker.Close()

		return runWorker(ctx, broker, logger)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

type subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// runWorker consumes both item channels until ctx is done or one
// subscription fails.
func runWorker(ctx context.Context, broker subscriber, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	channels := []string{services.ChannelItemCreated, services.ChannelItemClaimed}
	errCh := make(chan error, len(channels))
	for _, channel := range channels {
		go func(channel string) {
			logger.Info("subscribed", slog.String("channel", channel))
			errCh <- broker.Subscribe(ctx, channel, notificationHandler(logger))
		}(channel)
	}

	var firstErr error
	for range channels {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = fmt.Errorf("subscription ended: %w", err)
			cancel()
		}
	}
	return firstErr
}

// notificationHandler logs a notification for each item event. Payloads that
// cannot be decoded are dropped rather than requeued.
func notificationHandler(logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var event services.ItemEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.WarnContext(ctx, "dropping malformed event",
				slog.String("message_id", msg.ID),
				slog.Any("error", err))
			return nil
		}

		switch event.Type {
		case services.ChannelItemClaimed:
			logger.InfoContext(ctx, "notify poster: item claimed",
				slog.String("recipient", event.PostedBy),
				slog.String("item_id", event.ItemID),
				slog.String("title", event.Title),
				slog.String("claimed_by", event.ClaimedBy),
				slog.Time("claimed_at", event.OccurredAt))
		case services.ChannelItemCreated:
			logger.InfoContext(ctx, "new item posted",
				slog.String("item_id", event.ItemID),
				slog.String("kind", string(event.Kind)),
				slog.String("title", event.Title))
		default:
			logger.DebugContext(ctx, "ignoring event", slog.String("type", event.Type))
		}
		return nil
	}
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/lostfound-board/apiserver/types"
)

// Channels item events are published on.
const (
	ChannelItemCreated = "item.created"
	ChannelItemClaimed = "item.claimed"
)

// EventPublisher delivers item events to a broker. *mq.MQ satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, value any, attrs map[string]string) (string, error)
}

// ItemEvent is the payload published after an item is created or claimed.
type ItemEvent struct {
	// Type is the channel the event was published on.
	Type string `json:"type"`
	// ItemID identifies the item.
	ItemID string `json:"item_id"`
	// Kind is lost or found.
	Kind types.ItemKind `json:"kind"`
	// Title is the item title at the time of the event.
	Title string `json:"title"`
	// PostedBy is the poster's user id.
	PostedBy string `json:"posted_by"`
	// ClaimedBy is set for claim events.
	ClaimedBy string `json:"claimed_by,omitempty"`
	// OccurredAt is when the change was committed.
	OccurredAt time.Time `json:"occurred_at"`
}

func newItemEvent(channel string, item types.Item, at time.Time) ItemEvent {
	event := ItemEvent{
		Type:       channel,
		ItemID:     item.ID,
		Kind:       item.Kind,
		Title:      item.Title,
		PostedBy:   item.PostedBy,
		OccurredAt: at,
	}
	if item.ClaimedBy != nil {
		event.ClaimedBy = *item.ClaimedBy
	}
	return event
}

// publishItemEvent sends the event if a publisher is configured. Failures are
// logged; the committed change stands regardless.
func publishItemEvent(ctx context.Context, publisher EventPublisher, logger *slog.Logger, channel string, item types.Item, at time.Time) {
	if publisher == nil {
		return
	}
	attrs := map[string]string{"item_id": item.ID, "type": channel}
	if _, err := publisher.PublishJSON(ctx, channel, newItemEvent(channel, item, at), attrs); err != nil {
		logger.WarnContext(ctx, "publish item event failed",
			slog.String("channel", channel),
			slog.String("item_id", item.ID),
			slog.Any("error", err))
	}
}

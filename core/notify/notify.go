package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
)

// Notifier is informed about every newly created match. Formatting and
// delivering messages to users is left to the consumer.
type Notifier interface {
	MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error
}

// LogNotifier logs match events.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error {
	n.log.Info(
		"Match created",
		slog.Int64("match_id", event.MatchID),
		slog.Int64("post1_id", event.Post1ID),
		slog.Int64("post2_id", event.Post2ID),
		slog.Int64("owner1_account_id", event.Owner1AccountID),
		slog.Int64("owner2_account_id", event.Owner2AccountID),
		slog.Float64("confidence_score", event.ConfidenceScore),
	)
	return nil
}

// ErrChannelFull is returned by ChannelNotifier when the buffer is full.
var ErrChannelFull = errors.New("notification channel full")

// ChannelNotifier publishes events on a buffered channel without blocking.
// Events are dropped when the buffer is full.
type ChannelNotifier struct {
	events chan *model.MatchCreatedEvent
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{events: make(chan *model.MatchCreatedEvent, buffer)}
}

// Events returns the channel consumers read from.
func (n *ChannelNotifier) Events() <-chan *model.MatchCreatedEvent {
	return n.events
}

func (n *ChannelNotifier) MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error {
	select {
	case n.events <- event:
		return nil
	default:
		return ErrChannelFull
	}
}

// MultiNotifier forwards events to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.MatchCreated(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package queue

import (
	"context"
	"fmt"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/hibiken/asynq"
)

// AsynqNotifier publishes match created events as tasks on NotificationQueue
// for the notification subsystem.
type AsynqNotifier struct {
	client *asynq.Client
}

func NewAsynqNotifier(client *asynq.Client) *AsynqNotifier {
	return &AsynqNotifier{client: client}
}

func (n *AsynqNotifier) MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error {
	task, err := NewMatchCreatedTask(event)
	if err != nil {
		return err
	}
	if _, err := n.client.EnqueueContext(ctx, task, matchCreatedTaskOptions()...); err != nil {
		return fmt.Errorf("enqueue match created task: %w", err)
	}
	return nil
}

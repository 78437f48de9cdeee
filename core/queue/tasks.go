package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/hibiken/asynq"
)

const (
	// ScanPostTask is scheduled each time a post is approved.
	ScanPostTask = "match:scan_post"
	// MatchCreatedTask carries a new match to the notification subsystem.
	MatchCreatedTask = "match:created"

	// ScanQueue holds scan tasks and is served by the matching worker.
	ScanQueue = "scans"
	// NotificationQueue holds match created tasks. The matching worker does
	// not serve it, the notification subsystem does.
	NotificationQueue = "notifications"
)

// WorkerQueues returns the queues served by the matching worker.
func WorkerQueues() map[string]int {
	return map[string]int{ScanQueue: 1}
}

func scanTaskOptions(timeout time.Duration) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(ScanQueue),
		asynq.MaxRetry(3),
		asynq.Timeout(timeout),
		asynq.Unique(timeout),
	}
}

func matchCreatedTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(NotificationQueue),
		asynq.MaxRetry(5),
	}
}

// ScanPostPayload tells the worker which post to scan.
type ScanPostPayload struct {
	PostID int64 `json:"post_id"`
}

// NewScanPostTask creates the task scanning postID.
func NewScanPostTask(postID int64) (*asynq.Task, error) {
	data, err := json.Marshal(ScanPostPayload{PostID: postID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ScanPostTask, data), nil
}

// NewMatchCreatedTask creates the task announcing event.
func NewMatchCreatedTask(event *model.MatchCreatedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(MatchCreatedTask, data), nil
}

// NewRedisClientOptFromEnv reads REDIS_ADDR, REDIS_PASSWORD and REDIS_DB.
func NewRedisClientOptFromEnv() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     helper.GetEnvString("REDIS_ADDR", "localhost:6379"),
		Password: helper.GetEnvString("REDIS_PASSWORD", ""),
		DB:       helper.GetEnvInt("REDIS_DB", 0),
	}
}

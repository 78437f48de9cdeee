package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/hibiken/asynq"
)

// EventHandler consumes match created events.
type EventHandler interface {
	MatchCreated(ctx context.Context, event *model.MatchCreatedEvent) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	scan   ScanFunc
	events EventHandler
	log    *slog.Logger
}

// NewProcessor constructs a worker processor. events may be nil if match
// created tasks are consumed elsewhere.
func NewProcessor(scan ScanFunc, events EventHandler, logger *slog.Logger) *Processor {
	return &Processor{scan: scan, events: events, log: logger}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(ScanPostTask, p.handleScanPost)
	if p.events != nil {
		mux.HandleFunc(MatchCreatedTask, p.handleMatchCreated)
	}
	return mux
}

func (p *Processor) handleScanPost(ctx context.Context, task *asynq.Task) error {
	var payload ScanPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}

	err := p.scan(ctx, payload.PostID)
	if errors.Is(err, model.ErrPostNotApproved) {
		// The post was rejected or resolved after the task was queued
		p.log.Warn("Skipping scan of unapproved post", slog.Int64("post_id", payload.PostID))
		return nil
	}
	if err != nil {
		p.log.Error("Scan task failed", slog.Int64("post_id", payload.PostID), slog.Any("error", err))
		return err
	}

	return nil
}

func (p *Processor) handleMatchCreated(ctx context.Context, task *asynq.Task) error {
	var event model.MatchCreatedEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	return p.events.MatchCreated(ctx, &event)
}

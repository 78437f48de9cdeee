package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
)

// ScanFunc scans a single approved post.
type ScanFunc func(ctx context.Context, postID int64) error

// Dispatcher hands a post scan to background execution. DispatchScan returns
// once the scan is handed over, never after it ran.
type Dispatcher interface {
	DispatchScan(ctx context.Context, postID int64) error
}

// InlineDispatcher runs scans in goroutines of the current process. Scan
// errors are logged and published on Errors, never returned to the caller.
type InlineDispatcher struct {
	scan    ScanFunc
	timeout time.Duration
	errs    chan error
	wg      sync.WaitGroup
	log     *slog.Logger
}

// NewInlineDispatcher creates an InlineDispatcher bounding each scan by timeout.
func NewInlineDispatcher(scan ScanFunc, timeout time.Duration, logger *slog.Logger) *InlineDispatcher {
	return &InlineDispatcher{
		scan:    scan,
		timeout: timeout,
		errs:    make(chan error, 16),
		log:     logger,
	}
}

// DispatchScan starts the scan in the background. The scan outlives ctx
// cancellation but keeps its values.
func (d *InlineDispatcher) DispatchScan(ctx context.Context, postID int64) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				d.report(postID, fmt.Errorf("scan panicked: %v", r))
			}
		}()

		if err := d.scan(scanCtx, postID); err != nil {
			d.report(postID, err)
		}
	}()

	return nil
}

// Errors returns the channel background scan errors are published on.
// Errors are dropped when nobody reads.
func (d *InlineDispatcher) Errors() <-chan error {
	return d.errs
}

// Wait blocks until all dispatched scans finished or ctx is done.
func (d *InlineDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *InlineDispatcher) report(postID int64, err error) {
	d.log.Error("Background scan failed", slog.Int64("post_id", postID), slog.Any("error", err))

	select {
	case d.errs <- fmt.Errorf("scan post %d: %w", postID, err):
	default:
	}
}

// AsynqDispatcher enqueues scans into Redis for the worker.
type AsynqDispatcher struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewAsynqDispatcher creates an AsynqDispatcher. Each task runs at most timeout.
func NewAsynqDispatcher(client *asynq.Client, timeout time.Duration) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, timeout: timeout}
}

// DispatchScan enqueues a scan task. A post already queued is not queued again.
func (d *AsynqDispatcher) DispatchScan(ctx context.Context, postID int64) error {
	task, err := NewScanPostTask(postID)
	if err != nil {
		return err
	}

	_, err = d.client.EnqueueContext(ctx, task, scanTaskOptions(d.timeout)...)
	if err != nil {
		return fmt.Errorf("enqueue scan task: %w", err)
	}
	return nil
}

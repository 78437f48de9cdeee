package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	lostfound "github.com/VinhGH/Lost-Found-PLatform-sub001"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/imaging"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/queue"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/schedule"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

var envFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lostfound: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lostfound",
		Short: "Lost and found matching engine",
		Long: `lostfound scores approved lost posts against approved found posts by text and
image similarity and records the matches above the configured threshold.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			return helper.LoadEnv(envFile)
		},
	}
	cmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", "", "Env file to load before reading the configuration")
	cmd.AddCommand(
		newScanCmd(),
		newScanPostCmd(),
		newApproveCmd(),
		newWorkerCmd(),
		newPurgeEmbeddingsCmd(),
	)
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one batch sweep over recently active posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := newMatcher(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			report, err := m.ScanAll(ctx)
			if report != nil {
				printReport(report)
			}
			return err
		},
	}
}

func newScanPostCmd() *cobra.Command {
	var postID int64
	cmd := &cobra.Command{
		Use:   "scan-post",
		Short: "Scan one approved post against all posts of the other kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := newMatcher(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			report, err := m.ScanPost(ctx, postID)
			if report != nil {
				printReport(report)
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&postID, "id", 0, "ID of the post to scan")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newApproveCmd() *cobra.Command {
	var postID int64
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a post and scan it for matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := newMatcher(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			if enqueue {
				client := asynq.NewClient(queue.NewRedisClientOptFromEnv())
				defer client.Close()

				post, err := m.ApprovePost(ctx, postID, queue.NewAsynqDispatcher(client, m.Config.ScanTimeout))
				if err != nil {
					return err
				}
				fmt.Printf("approved post %d, scan enqueued\n", post.ID)
				return nil
			}

			dispatcher := queue.NewInlineDispatcher(m.ScanPostTask, m.Config.ScanTimeout, newLogger())
			post, err := m.ApprovePost(ctx, postID, dispatcher)
			if err != nil {
				return err
			}
			if err := dispatcher.Wait(ctx); err != nil {
				return err
			}
			fmt.Printf("approved post %d\n", post.ID)

			select {
			case err := <-dispatcher.Errors():
				return err
			default:
				return nil
			}
		},
	}
	cmd.Flags().Int64Var(&postID, "id", 0, "ID of the post to approve")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Enqueue the scan for the worker instead of running it in process")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	var concurrency int
	var sweep bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued scans and run the periodic sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			m, err := newMatcher(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			redisOpt := queue.NewRedisClientOptFromEnv()
			client := asynq.NewClient(redisOpt)
			defer client.Close()

			// New matches are fanned out through the queue
			m.SetNotifier(queue.NewAsynqNotifier(client))

			if sweep {
				scheduler, err := schedule.NewScheduler(m.Config.ScanSchedule, m.ScanAllTask, m.Config.ScanTimeout, logger)
				if err != nil {
					return err
				}
				scheduler.Start()
				defer scheduler.Stop()
			}

			// Match created tasks go to the notification queue, which is
			// left to the notification subsystem
			server := asynq.NewServer(redisOpt, asynq.Config{
				Concurrency: concurrency,
				Queues:      queue.WorkerQueues(),
			})
			processor := queue.NewProcessor(m.ScanPostTask, nil, logger)

			if err := server.Start(processor.Handler()); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}

			<-ctx.Done()
			logger.Info("Shutting down worker")
			server.Shutdown()
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of tasks processed concurrently")
	cmd.Flags().BoolVar(&sweep, "sweep", true, "Run the periodic batch sweep in this worker")
	return cmd
}

func newPurgeEmbeddingsCmd() *cobra.Command {
	var modelName string
	cmd := &cobra.Command{
		Use:   "purge-embeddings",
		Short: "Delete cached text embeddings of a model",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := newMatcher(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			if modelName == "" {
				modelName = m.Config.EmbeddingModel
			}
			deleted, err := m.Embeddings.DeleteEmbeddingsByModel(ctx, modelName)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d embeddings of %s\n", deleted, modelName)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "Model name, defaults to the configured embedding model")
	return cmd
}

// newMatcher builds a Matcher from the environment, with image scoring
// enabled when a vision provider is configured.
func newMatcher(ctx context.Context) (*lostfound.Matcher, error) {
	config, err := model.NewMatchConfigFromEnv()
	if err != nil {
		return nil, err
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}

	m, err := lostfound.NewMatcher(dbConfig, *config)
	if err != nil {
		return nil, err
	}

	score, err := imaging.NewPairScoreFunc(ctx, imaging.NewProviderConfigFromEnv())
	if err != nil {
		m.Close()
		return nil, err
	}
	m.SetImageScorer(score)

	return m, nil
}

func newLogger() *slog.Logger {
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	return slog.New(helper.NewPrettyHandler(os.Stdout, opts))
}

func printReport(report *model.ScanReport) {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "lostfound: encode report: %v\n", err)
		return
	}
	fmt.Println(string(out))
	fmt.Printf("scan took %s\n", report.Duration.Round(time.Millisecond))
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	lostfound "github.com/VinhGH/Lost-Found-PLatform-sub001"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/notify"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/core/queue"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
)

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// The default multilingual model is downloaded on the first scan
	m, err := lostfound.NewMatcher(dbConfig, model.DefaultMatchConfig())
	if err != nil {
		log.Fatalf("Failed to create matcher: %v", err)
	}
	defer m.Close()

	events := notify.NewChannelNotifier(10)
	m.SetNotifier(events)

	posts := []*model.Post{
		{Kind: model.PostKindLost, OwnerAccountID: 1, Title: "Mất ví da màu nâu", Description: "Ví có thẻ sinh viên", Location: "Thư viện tầng 2", Category: "Ví"},
		{Kind: model.PostKindLost, OwnerAccountID: 2, Title: "Lost black umbrella", Location: "Cafeteria", Category: "Other"},
		{Kind: model.PostKindFound, OwnerAccountID: 3, Title: "Lost blue bicycle helmet", Location: "Parking lot B", Category: "Other"},
	}
	for _, post := range posts {
		post.Status = model.PostStatusApproved
		if err := m.Posts.InsertPost(ctx, post); err != nil {
			log.Fatalf("Failed to insert post: %v", err)
		}
	}

	// A found post goes through moderation and is scanned when approved
	found := &model.Post{
		Kind:           model.PostKindFound,
		OwnerAccountID: 4,
		Title:          "Nhặt được ví da nâu",
		Description:    "Trong ví có thẻ sinh viên",
		Location:       "Thư viện",
		Category:       "Ví",
	}
	if err := m.Posts.InsertPost(ctx, found); err != nil {
		log.Fatalf("Failed to insert post: %v", err)
	}

	dispatcher := queue.NewInlineDispatcher(m.ScanPostTask, time.Minute, slog.Default())
	if _, err := m.ApprovePost(ctx, found.ID, dispatcher); err != nil {
		log.Fatalf("Failed to approve post: %v", err)
	}
	if err := dispatcher.Wait(ctx); err != nil {
		log.Fatalf("Failed waiting for scan: %v", err)
	}

	fmt.Println("Matches after approval:")
	printEvents(events)

	// The periodic sweep picks up everything else that is recent
	report, err := m.ScanAll(ctx)
	if err != nil {
		log.Fatalf("Failed to run sweep: %v", err)
	}
	fmt.Printf("\nSweep: %d candidates, %d excluded, %d accepted, %d new\n",
		report.Candidates, report.Excluded, len(report.Accepted), len(report.Persisted))
	printEvents(events)
}

func printEvents(events *notify.ChannelNotifier) {
	for {
		select {
		case event := <-events.Events():
			fmt.Printf("  %q <-> %q (confidence %.2f), notify accounts %d and %d\n",
				event.Post1Title, event.Post2Title, event.ConfidenceScore, event.Owner1AccountID, event.Owner2AccountID)
		default:
			return
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/workflow"
)

func main() {
	once := flag.Bool("once", false, "Dispatch a single batch and exit")
	batchSize := flag.Int("batch-size", 0, "Override OUTBOX_BATCH_SIZE")
	pollInterval := flag.Duration("poll", 500*time.Millisecond, "Delay between batches")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	d := workflow.NewOutboxDispatcher(db, config.GetLogger())
	if *batchSize > 0 {
		d.BatchSize = *batchSize
	}
	d.PollInterval = *pollInterval

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		stats, err := d.DispatchOnce(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("claimed=%d sent=%d failed=%d dead=%d\n", stats.Claimed, stats.Sent, stats.Failed, stats.Dead)
		return
	}

	fmt.Printf("outbox dispatcher %s started\n", d.DispatcherID)
	d.Run(ctx)
	fmt.Println("outbox dispatcher stopped")
}

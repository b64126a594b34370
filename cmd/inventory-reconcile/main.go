package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"github.com/stockroom/inventory_backend/workflow"
)

func main() {
	repair := flag.Bool("repair", false, "Recompute drifted category quantities and purchase totals")
	failOnFindings := flag.Bool("fail-on-findings", false, "Exit 2 when any finding remains unrepaired")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if config.RedisAddress() != "" {
		config.ConnectRedisWithRetry()
	}

	ctx := utils.SetCorrelationIdInContext(context.Background(), uuid.NewString())
	ctx = utils.SetUserNameInContext(ctx, "System")
	summary, err := workflow.RunReconciliationChecks(ctx, config.GetLogger(), *repair)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	unrepaired := 0
	for _, f := range summary.Findings {
		state := "reported"
		if f.Repaired {
			state = "repaired"
		} else {
			unrepaired++
		}
		fmt.Printf("%-20s %-18s id=%-6d %-8s %s\n", f.CheckType, f.EntityType, f.EntityId, state, f.Details)
	}
	fmt.Printf("reconciliation complete correlation_id=%s findings=%d repaired=%d\n",
		summary.CorrelationId, len(summary.Findings), summary.Repaired)

	if *failOnFindings && unrepaired > 0 {
		os.Exit(2)
	}
}

package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/models"
)

// RunReconciliationChecks writes drift rows to reconciliation_reports and, with repair,
// recomputes the derived aggregates it can. Run it on a schedule or from an admin trigger.
func RunReconciliationChecks(ctx context.Context, logger *logrus.Logger, repair bool) (*models.ReconciliationSummary, error) {
	summary, err := models.RunReconciliationChecks(ctx, repair)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		byType := map[string]int{}
		for _, f := range summary.Findings {
			byType[f.CheckType]++
		}
		logger.WithFields(logrus.Fields{
			"field":          "ReconciliationChecks",
			"correlation_id": summary.CorrelationId,
			"findings":       len(summary.Findings),
			"repaired":       summary.Repaired,
			"by_check":       byType,
		}).Info("reconciliation checks completed")
	}
	return summary, nil
}

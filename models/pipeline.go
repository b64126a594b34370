package models

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const stockLockKey = "stockLock"

var tracer = otel.Tracer("github.com/stockroom/inventory_backend/models")

// MutationStage is one step of a MutationPipeline. It must only read and write through tx.
type MutationStage func(tx *gorm.DB) error

// MutationPipeline runs the stages of one write in a fixed order inside a single transaction:
// capture the pre-mutation state, validate, write the row, then reconcile dependent state.
// Any stage error rolls back everything.
type MutationPipeline struct {
	Name      string
	Capture   []MutationStage
	Validate  []MutationStage
	Write     MutationStage
	Reconcile []MutationStage

	afterCommit []func()
}

func newPipeline(name string) *MutationPipeline {
	return &MutationPipeline{Name: name}
}

// OnCommit registers fn to run once the outermost transaction commits.
func (p *MutationPipeline) OnCommit(fn func()) {
	p.afterCommit = append(p.afterCommit, fn)
}

// Cascade returns a stage running child inside the parent's transaction.
// The child's commit callbacks move to the parent.
func (p *MutationPipeline) Cascade(child *MutationPipeline) MutationStage {
	return func(tx *gorm.DB) error {
		if err := child.RunInTx(tx); err != nil {
			return err
		}
		p.afterCommit = append(p.afterCommit, child.afterCommit...)
		child.afterCommit = nil
		return nil
	}
}

// Run takes the stock lock, opens a transaction and runs the pipeline in it.
func (p *MutationPipeline) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "inventory."+p.Name, trace.WithAttributes(attribute.String("inventory.pipeline", p.Name)))
	defer span.End()
	started := time.Now()
	defer func() { mutationDuration.WithLabelValues(p.Name).Observe(time.Since(started).Seconds()) }()

	release, err := utils.InventoryLock(ctx, stockLockKey, "pipeline.go", p.Name)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		MutationsTotal.WithLabelValues(p.Name, MutationResultFailed).Inc()
		return err
	}
	defer release()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		MutationsTotal.WithLabelValues(p.Name, MutationResultFailed).Inc()
		return tx.Error
	}

	if err := p.RunInTx(tx); err != nil {
		tx.Rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isExpectedRejection(err) {
			MutationsTotal.WithLabelValues(p.Name, MutationResultRejected).Inc()
		} else {
			MutationsTotal.WithLabelValues(p.Name, MutationResultFailed).Inc()
			config.LogError(config.GetLogger(), "pipeline.go", p.Name, "mutation rolled back", nil, err)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		span.RecordError(err)
		config.LogError(config.GetLogger(), "pipeline.go", p.Name, "commit failed", nil, err)
		MutationsTotal.WithLabelValues(p.Name, MutationResultFailed).Inc()
		return err
	}
	MutationsTotal.WithLabelValues(p.Name, MutationResultCommitted).Inc()

	for _, fn := range p.afterCommit {
		fn()
	}
	p.afterCommit = nil
	return nil
}

// RunInTx runs the stages inside an existing transaction. The caller owns commit and rollback.
func (p *MutationPipeline) RunInTx(tx *gorm.DB) error {
	if tx == nil {
		return errors.New("tx is nil")
	}
	run := func(stage string, stages ...MutationStage) error {
		for _, fn := range stages {
			if fn == nil {
				continue
			}
			if err := fn(tx); err != nil {
				config.LogDebug(config.GetLogger(), "pipeline.go", p.Name, "stage aborted", logrus.Fields{
					"stage": stage,
					"error": err.Error(),
				})
				return err
			}
		}
		return nil
	}

	if err := run("capture", p.Capture...); err != nil {
		return err
	}
	if err := run("validate", p.Validate...); err != nil {
		return err
	}
	if err := run("write", p.Write); err != nil {
		return err
	}
	return run("reconcile", p.Reconcile...)
}

// caller errors are logged at debug level only
func isExpectedRejection(err error) bool {
	return errors.Is(err, utils.ErrValidation) ||
		errors.Is(err, utils.ErrInsufficientAvailable) ||
		errors.Is(err, utils.ErrorRecordNotFound)
}

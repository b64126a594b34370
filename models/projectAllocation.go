package models

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

// ProjectAllocation borrows Quantity units of one item for a project.
// Exactly Quantity units are bound to it after every committed write.
type ProjectAllocation struct {
	ID        int          `gorm:"primary_key" json:"id"`
	ProjectId int          `gorm:"index;not null" json:"project_id"`
	ItemId    int          `gorm:"index;not null" json:"item_id"`
	Quantity  int          `gorm:"not null;default:0" json:"quantity"`
	Units     []SerialUnit `gorm:"foreignKey:ProjectAllocationId" json:"units"`
	StartDate time.Time    `gorm:"autoCreateTime" json:"start_date"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProjectAllocation struct {
	ItemId   int `json:"item_id" validate:"required"`
	Quantity int `json:"quantity" validate:"gte=0"`
}

func CreateProjectAllocation(ctx context.Context, projectId int, input *NewProjectAllocation) (*ProjectAllocation, error) {
	p, allocation := projectAllocationCreatePipeline(projectId, input)
	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return allocation, nil
}

// UpdateProjectAllocation changes the borrowed quantity. Moving an allocation to another item is rejected.
func UpdateProjectAllocation(ctx context.Context, id int, input *NewProjectAllocation) (*ProjectAllocation, error) {
	var allocation, before *ProjectAllocation

	p := newPipeline("UpdateProjectAllocation")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		allocation, err = utils.FetchModelForUpdate[ProjectAllocation](tx, id)
		if err != nil {
			return err
		}
		snapshot := *allocation
		before = &snapshot
		p.OnCommit(invalidateCache[Project](allocation.ProjectId))
		return nil
	}}
	p.Validate = []MutationStage{
		func(tx *gorm.DB) error {
			if err := utils.ValidateStruct(input); err != nil {
				return err
			}
			if input.ItemId != allocation.ItemId {
				return utils.NewFieldValidationError("item_id", "allocation %d is for item %d; delete it and allocate item %d instead",
					id, allocation.ItemId, input.ItemId)
			}
			return nil
		},
		func(tx *gorm.DB) error {
			return ValidateAllocationAvailability(tx, id, allocation.ItemId, input.Quantity)
		},
	}
	p.Write = func(tx *gorm.DB) error {
		allocation.Quantity = input.Quantity
		return tx.Model(allocation).Update("quantity", input.Quantity).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			return SyncAllocationUnits(tx, allocation)
		},
		func(tx *gorm.DB) error {
			return tx.Where("project_allocation_id = ?", id).Order("code").Find(&allocation.Units).Error
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypeProjectAllocation, id, before, allocation,
				fmt.Sprintf("Updated Project Allocation of project %d", allocation.ProjectId))
		},
	}
	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return allocation, nil
}

func DeleteProjectAllocation(ctx context.Context, id int) (*ProjectAllocation, error) {
	p, allocation := projectAllocationDeletePipeline(id)
	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return allocation, nil
}

func projectAllocationCreatePipeline(projectId int, input *NewProjectAllocation) (*MutationPipeline, *ProjectAllocation) {
	allocation := &ProjectAllocation{
		ProjectId: projectId,
		ItemId:    input.ItemId,
		Quantity:  input.Quantity,
	}

	p := newPipeline("CreateProjectAllocation")
	p.Capture = []MutationStage{func(tx *gorm.DB) error {
		_, err := utils.FetchModelForUpdate[Project](tx, projectId)
		return err
	}}
	p.Validate = []MutationStage{
		func(tx *gorm.DB) error {
			if err := utils.ValidateStruct(input); err != nil {
				return err
			}
			if input.Quantity < 1 {
				return utils.NewFieldValidationError("quantity", "quantity must be at least 1")
			}
			if err := utils.ValidateResourceId[Item](tx, input.ItemId); err != nil {
				return utils.NewFieldValidationError("item_id", "item %d not found", input.ItemId)
			}
			return nil
		},
		func(tx *gorm.DB) error {
			return ValidateAllocationAvailability(tx, 0, input.ItemId, input.Quantity)
		},
	}
	p.Write = func(tx *gorm.DB) error {
		return tx.Omit("Units").Create(allocation).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			return SyncAllocationUnits(tx, allocation)
		},
		func(tx *gorm.DB) error {
			return tx.Where("project_allocation_id = ?", allocation.ID).Order("code").Find(&allocation.Units).Error
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypeProjectAllocation, allocation.ID, nil, allocation,
				fmt.Sprintf("Created Project Allocation of project %d", projectId))
		},
	}
	p.OnCommit(invalidateCache[Project](projectId))
	return p, allocation
}

// the returned allocation is filled once the capture stage has run
func projectAllocationDeletePipeline(id int) (*MutationPipeline, *ProjectAllocation) {
	allocation := &ProjectAllocation{}

	p := newPipeline("DeleteProjectAllocation")
	p.Capture = []MutationStage{func(tx *gorm.DB) error {
		captured, err := utils.FetchModelForUpdate[ProjectAllocation](tx, id)
		if err != nil {
			return err
		}
		*allocation = *captured
		p.OnCommit(invalidateCache[Project](allocation.ProjectId))
		return nil
	}}
	p.Write = func(tx *gorm.DB) error {
		// units go back to available before the row is removed
		if _, err := ReleaseBoundUnits(tx, id, -1); err != nil {
			return err
		}
		if err := assertBoundCount(tx, allocation, 0); err != nil {
			return err
		}
		return tx.Delete(&ProjectAllocation{}, id).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypeProjectAllocation, id, allocation, nil,
			fmt.Sprintf("Deleted Project Allocation of project %d", allocation.ProjectId))
	}}
	return p, allocation
}

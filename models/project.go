package models

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

type Project struct {
	ID          int                 `gorm:"primary_key" json:"id"`
	Name        string              `gorm:"size:40;not null" json:"name"`
	Leader      string              `gorm:"size:30;not null" json:"leader"`
	Allocations []ProjectAllocation `gorm:"foreignKey:ProjectId" json:"allocations"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProjectHeaderInput struct {
	Name   string `json:"name" validate:"required,max=40"`
	Leader string `json:"leader" validate:"required,max=30"`
}

type NewProject struct {
	ProjectHeaderInput
	Allocations []NewProjectAllocation `json:"allocations" validate:"dive"`
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	project := Project{
		Name:   input.Name,
		Leader: input.Leader,
	}

	p := newPipeline("CreateProject")
	p.Write = func(tx *gorm.DB) error {
		return tx.Omit("Allocations").Create(&project).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypeProject, project.ID, nil, project, "Created Project "+project.Name)
		},
		func(tx *gorm.DB) error {
			for i := range input.Allocations {
				child, _ := projectAllocationCreatePipeline(project.ID, &input.Allocations[i])
				if err := p.Cascade(child)(tx); err != nil {
					return fmt.Errorf("allocation %d: %w", i+1, err)
				}
			}
			return nil
		},
		func(tx *gorm.DB) error {
			fresh, err := utils.FetchModel[Project](tx, project.ID, "Allocations", "Allocations.Units")
			if err != nil {
				return err
			}
			project = *fresh
			return nil
		},
	}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return &project, nil
}

func UpdateProject(ctx context.Context, id int, input *ProjectHeaderInput) (*Project, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	var project, before *Project

	p := newPipeline("UpdateProject")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		project, err = utils.FetchModelForUpdate[Project](tx, id)
		if err == nil {
			snapshot := *project
			before = &snapshot
		}
		return err
	}}
	p.Write = func(tx *gorm.DB) error {
		project.Name = input.Name
		project.Leader = input.Leader
		return tx.Model(project).Updates(map[string]interface{}{
			"name":   input.Name,
			"leader": input.Leader,
		}).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypeProject, id, before, project, "Updated Project "+project.Name)
	}}
	p.OnCommit(invalidateCache[Project](id))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject deletes every allocation first, returning its units, then the project row.
func DeleteProject(ctx context.Context, id int) (*Project, error) {
	var project *Project

	p := newPipeline("DeleteProject")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		project, err = utils.FetchModelForUpdate[Project](tx, id)
		if err != nil {
			return err
		}
		return tx.Where("project_id = ?", id).Order("id").Find(&project.Allocations).Error
	}}
	p.Write = func(tx *gorm.DB) error {
		for _, allocation := range project.Allocations {
			child, _ := projectAllocationDeletePipeline(allocation.ID)
			if err := p.Cascade(child)(tx); err != nil {
				return fmt.Errorf("project allocation %d: %w", allocation.ID, err)
			}
		}
		return tx.Delete(&Project{}, id).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypeProject, id, project, nil, "Deleted Project "+project.Name)
	}}
	p.OnCommit(invalidateCache[Project](id))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject returns the project with its allocations and their bound units.
func GetProject(ctx context.Context, id int) (*Project, error) {
	return GetResource[Project](ctx, id, "Allocations", "Allocations.Units")
}

func ListProjects(ctx context.Context) ([]*Project, error) {
	return ListAllResource[Project](ctx, "name")
}

package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cohaus/cohaus/internal/perm"
)

// RepositoryPort is the persistence contract the service depends on.
type RepositoryPort interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	ListByHouse(ctx context.Context, houseID, status string) ([]Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, id string) error
}

// Service implements the chore board rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields for a new task.
type CreateInput struct {
	Title       string
	Description string
	AssigneeID  string
	DueOn       *time.Time
}

// Create files a task against the house.
func (s *Service) Create(ctx context.Context, userID, houseID string, in CreateInput) (*Task, error) {
	task := &Task{
		ID:          uuid.NewString(),
		HouseID:     houseID,
		CreatedBy:   userID,
		AssigneeID:  in.AssigneeID,
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusOpen,
		DueOn:       in.DueOn,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// List returns the house's tasks, optionally filtered by status.
func (s *Service) List(ctx context.Context, houseID, status string) ([]Task, error) {
	return s.repo.ListByHouse(ctx, houseID, status)
}

// Get loads one task.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateInput carries the editable task fields. Nil pointers leave the
// current value in place.
type UpdateInput struct {
	Title       *string
	Description *string
	AssigneeID  *string
	Status      *string
	DueOn       *time.Time
}

// Update edits a task. Creators and assignees may edit their own; editing
// anyone else's requires the delete-any capability.
func (s *Service) Update(ctx context.Context, userID string, perms perm.PermissionSet, taskID string, in UpdateInput) (*Task, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Own(userID) && !perms.CanDeleteAnyTask {
		return nil, ErrNotOwner
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.AssigneeID != nil {
		task.AssigneeID = *in.AssigneeID
	}
	if in.Status != nil {
		if *in.Status != StatusOpen && *in.Status != StatusDone {
			return nil, fmt.Errorf("tasks: unknown status %q", *in.Status)
		}
		task.Status = *in.Status
	}
	if in.DueOn != nil {
		task.DueOn = in.DueOn
	}

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// Delete removes a task under the same ownership rule as editing.
func (s *Service) Delete(ctx context.Context, userID string, perms perm.PermissionSet, taskID string) error {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.Own(userID) && !perms.CanDeleteAnyTask {
		return ErrNotOwner
	}
	return s.repo.Delete(ctx, taskID)
}

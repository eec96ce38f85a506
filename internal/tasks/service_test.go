package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cohaus/cohaus/internal/perm"
	"github.com/cohaus/cohaus/internal/shared"
)

type memRepo struct {
	tasks map[string]*Task
}

func newMemRepo() *memRepo {
	return &memRepo{tasks: map[string]*Task{}}
}

func (m *memRepo) Create(_ context.Context, task *Task) error {
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *memRepo) ListByHouse(_ context.Context, houseID, status string) ([]Task, error) {
	var result []Task
	for _, task := range m.tasks {
		if task.HouseID != houseID {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		result = append(result, *task)
	}
	return result, nil
}

func (m *memRepo) Update(_ context.Context, task *Task) error {
	if _, ok := m.tasks[task.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.tasks[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func TestCreateDefaultsOpen(t *testing.T) {
	svc := NewService(newMemRepo())

	task, err := svc.Create(context.Background(), "u1", "h1", CreateInput{Title: "Fix gutter"})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, task.Status)
	require.Equal(t, "u1", task.CreatedBy)
}

func TestAssigneeMayCompleteTask(t *testing.T) {
	svc := NewService(newMemRepo())

	task, err := svc.Create(context.Background(), "u1", "h1", CreateInput{Title: "Mow lawn", AssigneeID: "u2"})
	require.NoError(t, err)

	done := StatusDone
	updated, err := svc.Update(context.Background(), "u2", perm.PermissionSet{}, task.ID, UpdateInput{Status: &done})
	require.NoError(t, err)
	require.Equal(t, StatusDone, updated.Status)
}

func TestForeignTaskNeedsDeleteAny(t *testing.T) {
	svc := NewService(newMemRepo())

	task, err := svc.Create(context.Background(), "u1", "h1", CreateInput{Title: "Clean pool"})
	require.NoError(t, err)

	title := "Drain pool"
	_, err = svc.Update(context.Background(), "u3", perm.PermissionSet{CanEditOwnTask: true}, task.ID, UpdateInput{Title: &title})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.Update(context.Background(), "u3", perm.PermissionSet{CanDeleteAnyTask: true}, task.ID, UpdateInput{Title: &title})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "u3", perm.PermissionSet{}, task.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	err = svc.Delete(context.Background(), "u3", perm.PermissionSet{CanDeleteAnyTask: true}, task.ID)
	require.NoError(t, err)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	svc := NewService(newMemRepo())

	task, err := svc.Create(context.Background(), "u1", "h1", CreateInput{Title: "Paint fence"})
	require.NoError(t, err)

	bogus := "paused"
	_, err = svc.Update(context.Background(), "u1", perm.PermissionSet{}, task.ID, UpdateInput{Status: &bogus})
	require.Error(t, err)
}

func TestListFiltersByStatus(t *testing.T) {
	svc := NewService(newMemRepo())

	first, err := svc.Create(context.Background(), "u1", "h1", CreateInput{Title: "a"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "u1", "h1", CreateInput{Title: "b"})
	require.NoError(t, err)

	done := StatusDone
	_, err = svc.Update(context.Background(), "u1", perm.PermissionSet{}, first.ID, UpdateInput{Status: &done})
	require.NoError(t, err)

	open, err := svc.List(context.Background(), "h1", StatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)

	all, err := svc.List(context.Background(), "h1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

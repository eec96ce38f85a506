package tasks

import (
	"errors"
	"time"
)

// Task statuses move open -> done; there is no richer workflow.
const (
	StatusOpen = "open"
	StatusDone = "done"
)

// ErrNotOwner is returned when a user edits a task they neither created
// nor are assigned to, without the delete-any capability.
var ErrNotOwner = errors.New("tasks: not your task")

// Task is a maintenance chore tracked against a house.
type Task struct {
	ID          string     `json:"id"`
	HouseID     string     `json:"house_id"`
	CreatedBy   string     `json:"created_by"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	DueOn       *time.Time `json:"due_on,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Own reports whether userID may treat the task as their own: they filed
// it or it is assigned to them.
func (t *Task) Own(userID string) bool {
	return t.CreatedBy == userID || t.AssigneeID == userID
}

package card

import (
	"fmt"
	"strings"

	"github.com/matt-steen/taskcard/pkg/db"
)

// Field names one of the editable task fields.
type Field int

// These constants are the fields a TaskDraft holds.
const (
	FieldTitle Field = iota
	FieldDueDate
	FieldPriority
	FieldAssignedTo
	FieldRelatedCustomer
	FieldTags
)

// TaskDraft is the editable projection of a Task. Assignees and tags are held as the
// comma-separated text the user types.
type TaskDraft struct {
	Title           string
	DueDate         string
	Priority        db.Priority
	AssignedTo      string
	RelatedCustomer string
	Tags            string
}

// NewTaskDraft projects the editable fields of task into a draft.
func NewTaskDraft(task db.Task) TaskDraft {
	return TaskDraft{
		Title:           task.Title,
		DueDate:         task.DueDate,
		Priority:        task.Priority,
		AssignedTo:      JoinList(task.AssignedTo),
		RelatedCustomer: task.RelatedCustomer,
		Tags:            JoinList(task.Tags),
	}
}

// ApplyTo maps the draft back onto the canonical shape of task.
func (d TaskDraft) ApplyTo(task db.Task) db.Task {
	task = task.Clone()
	task.Title = d.Title
	task.DueDate = d.DueDate
	task.Priority = d.Priority
	task.AssignedTo = SplitList(d.AssignedTo)
	task.RelatedCustomer = d.RelatedCustomer
	task.Tags = SplitList(d.Tags)

	return task
}

// SplitList splits comma-separated text into trimmed, non-empty entries. Entries keep the order
// they were typed in; repeats are dropped.
func SplitList(text string) []string {
	out := []string{}
	seen := map[string]bool{}

	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" && !seen[part] {
			seen[part] = true
			out = append(out, part)
		}
	}

	return out
}

// JoinList is the inverse of SplitList.
func JoinList(values []string) string {
	return strings.Join(values, ", ")
}

// TaskFieldEditor holds the task draft while a card is in EditingTask mode.
type TaskFieldEditor struct {
	draft TaskDraft
}

// NewTaskFieldEditor starts a draft from the current authoritative task.
func NewTaskFieldEditor(task db.Task) *TaskFieldEditor {
	return &TaskFieldEditor{draft: NewTaskDraft(task)}
}

// Set changes a single draft field. Priorities must name a known priority.
func (e *TaskFieldEditor) Set(field Field, value string) error {
	switch field {
	case FieldTitle:
		e.draft.Title = value
	case FieldDueDate:
		e.draft.DueDate = value
	case FieldPriority:
		priority, err := db.ParsePriority(value)
		if err != nil {
			return err
		}

		e.draft.Priority = priority
	case FieldAssignedTo:
		e.draft.AssignedTo = value
	case FieldRelatedCustomer:
		e.draft.RelatedCustomer = value
	case FieldTags:
		e.draft.Tags = value
	default:
		return fmt.Errorf("%w: %d", ErrUnknownField, field)
	}

	return nil
}

// Draft returns the current draft.
func (e *TaskFieldEditor) Draft() TaskDraft {
	return e.draft
}

// Commit returns task with the draft applied.
func (e *TaskFieldEditor) Commit(task db.Task) db.Task {
	return e.draft.ApplyTo(task)
}

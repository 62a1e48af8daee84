package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// These constants refer to the statuses supported by the app.
const (
	StatusClosed    = "closed"
	StatusOpen      = "open"
	StatusDone      = "done"
	StatusOnHold    = "on_hold"
	StatusAbandoned = "abandoned"
)

// TaskID is the opaque, stable identifier of a task.
type TaskID string

// Priority is the importance of a task.
type Priority string

// These constants are the supported priorities.
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists the supported priorities, highest first.
func Priorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// ParsePriority returns the Priority named by s.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities() {
		if string(p) == s {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: '%s'", ErrInvalidPriority, s)
}

// Subtask is a single checklist entry of a Task. IDs are unique within the parent's sequence.
type Subtask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Task is a unit of work shown as a card on the board.
type Task struct {
	ID              TaskID    `json:"id"`
	Title           string    `json:"title"`
	DueDate         string    `json:"due_date"`
	Priority        Priority  `json:"priority"`
	TopPriority     bool      `json:"top_priority"`
	AssignedTo      []string  `json:"assigned_to"`
	RelatedCustomer string    `json:"related_customer"`
	Tags            []string  `json:"tags"`
	Subtasks        []Subtask `json:"subtasks"`
	// Status is the name of the column holding the task. Rank is its position within that
	// column, starting at 0.
	Status    string    `json:"status"`
	Rank      int       `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of the task that shares no slices with t.
func (t Task) Clone() Task {
	t.AssignedTo = CloneStrings(t.AssignedTo)
	t.Tags = CloneStrings(t.Tags)
	t.Subtasks = CloneSubtasks(t.Subtasks)

	return t
}

// CloneSubtasks copies a subtask sequence; a nil sequence becomes empty.
func CloneSubtasks(subtasks []Subtask) []Subtask {
	out := make([]Subtask, len(subtasks))
	copy(out, subtasks)

	return out
}

// CloneStrings copies a string list; a nil list becomes empty.
func CloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)

	return out
}

// EqualSubtasks reports whether two sequences hold the same subtasks in the same order.
func EqualSubtasks(a, b []Subtask) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// Patch is a partial update of a task. A nil field is left unchanged.
// UpdatedAt is always written.
type Patch struct {
	Title           *string
	DueDate         *string
	Priority        *Priority
	AssignedTo      *[]string
	RelatedCustomer *string
	Tags            *[]string
	Subtasks        *[]Subtask
	UpdatedAt       time.Time
}

// Status represents a status entry and contains pointers to associated Tasks, ordered by rank.
type Status struct {
	id    int
	Name  string
	Tasks []*Task
}

// decodeList reads a JSON column holding a list of strings. Older rows may hold null or a
// bare string; both are normalized to a list.
func decodeList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []string{}, nil
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		if list == nil {
			list = []string{}
		}

		return list, nil
	}

	var single string
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		return nil, fmt.Errorf("error decoding list %s: %w", raw, err)
	}

	if single == "" {
		return []string{}, nil
	}

	return []string{single}, nil
}

func decodeSubtasks(raw string) ([]Subtask, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []Subtask{}, nil
	}

	var subtasks []Subtask
	if err := json.Unmarshal([]byte(raw), &subtasks); err != nil {
		return nil, fmt.Errorf("error decoding subtasks: %w", err)
	}

	if subtasks == nil {
		subtasks = []Subtask{}
	}

	return subtasks, nil
}

func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("error encoding %T: %w", v, err)
	}

	return string(data), nil
}

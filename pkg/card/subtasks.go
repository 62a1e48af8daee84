package card

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/matt-steen/taskcard/pkg/db"
)

var lastSubtaskID atomic.Int64

// NewSubtaskID returns a time-derived id (Unix milliseconds) that is strictly greater than
// every id it returned before in this process.
func NewSubtaskID() string {
	for {
		last := lastSubtaskID.Load()

		next := time.Now().UnixMilli()
		if next <= last {
			next = last + 1
		}

		if lastSubtaskID.CompareAndSwap(last, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}

// SubtaskEditor holds the subtask draft buffer. Nothing it does reaches the record store.
type SubtaskEditor struct {
	buffer []db.Subtask
	newID  func() string
}

// NewSubtaskEditor creates a buffer mirroring subtasks. newID generates ids for added subtasks.
func NewSubtaskEditor(subtasks []db.Subtask, newID func() string) *SubtaskEditor {
	if newID == nil {
		newID = NewSubtaskID
	}

	return &SubtaskEditor{
		buffer: db.CloneSubtasks(subtasks),
		newID:  newID,
	}
}

// Reset replaces the whole buffer.
func (e *SubtaskEditor) Reset(subtasks []db.Subtask) {
	e.buffer = db.CloneSubtasks(subtasks)
}

// Subtasks returns a copy of the buffer.
func (e *SubtaskEditor) Subtasks() []db.Subtask {
	return db.CloneSubtasks(e.buffer)
}

// Add appends a new, incomplete subtask with the trimmed text. Empty text is rejected and
// reported by a false return.
func (e *SubtaskEditor) Add(text string) (db.Subtask, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return db.Subtask{}, false
	}

	id := e.newID()
	for e.index(id) >= 0 {
		id = e.newID()
	}

	subtask := db.Subtask{ID: id, Text: text}
	e.buffer = append(e.buffer, subtask)

	return subtask, true
}

// Remove drops the subtask with the given id. It reports whether one was found.
func (e *SubtaskEditor) Remove(id string) bool {
	i := e.index(id)
	if i < 0 {
		return false
	}

	e.buffer = append(e.buffer[:i:i], e.buffer[i+1:]...)

	return true
}

// EditText replaces the text of a subtask as given. Unlike Add, text is neither trimmed nor
// rejected when empty.
func (e *SubtaskEditor) EditText(id, text string) bool {
	i := e.index(id)
	if i < 0 {
		return false
	}

	e.buffer[i].Text = text

	return true
}

// MoveUp swaps the subtask at index with the one before it. Out of range indexes are ignored.
func (e *SubtaskEditor) MoveUp(index int) {
	if index <= 0 || index >= len(e.buffer) {
		return
	}

	e.buffer[index-1], e.buffer[index] = e.buffer[index], e.buffer[index-1]
}

// MoveDown swaps the subtask at index with the one after it. Out of range indexes are ignored.
func (e *SubtaskEditor) MoveDown(index int) {
	if index < 0 || index >= len(e.buffer)-1 {
		return
	}

	e.buffer[index], e.buffer[index+1] = e.buffer[index+1], e.buffer[index]
}

// Progress returns the rounded percentage of completed subtasks in the buffer.
func (e *SubtaskEditor) Progress() int {
	return Progress(e.buffer)
}

func (e *SubtaskEditor) index(id string) int {
	for i, subtask := range e.buffer {
		if subtask.ID == id {
			return i
		}
	}

	return -1
}

// Progress returns round(100 * completed / total), or 0 for an empty sequence.
func Progress(subtasks []db.Subtask) int {
	if len(subtasks) == 0 {
		return 0
	}

	completed := 0

	for _, subtask := range subtasks {
		if subtask.Completed {
			completed++
		}
	}

	return int(math.Round(100 * float64(completed) / float64(len(subtasks))))
}

// Toggled returns a copy of subtasks with the completion of the matching subtask flipped.
func Toggled(subtasks []db.Subtask, id string) ([]db.Subtask, bool) {
	out := db.CloneSubtasks(subtasks)

	for i := range out {
		if out[i].ID == id {
			out[i].Completed = !out[i].Completed

			return out, true
		}
	}

	return out, false
}

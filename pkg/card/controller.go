package card

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rs/zerolog/log"
)

// Gateway performs partial updates of the authoritative task record.
type Gateway interface {
	Update(ctx context.Context, id db.TaskID, patch db.Patch) error
}

// UpdateFunc is the owner callback. It is called exactly once for every committed change
// and never on failure or cancel.
type UpdateFunc func(task db.Task)

// Controller owns the mode of a single card, its two draft buffers and the mirror of the
// authoritative task. It is safe for concurrent use; writes to the store are serialized so a
// second write is computed from the result of the first.
type Controller struct {
	mu      sync.Mutex
	writeMu sync.Mutex

	gateway  Gateway
	onUpdate UpdateFunc
	now      func() time.Time

	task     db.Task
	mode     Mode
	fields   *TaskFieldEditor
	subtasks *SubtaskEditor
	index    int
	comments bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the source of updated_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithIDGenerator sets the generator for ids of added subtasks.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		c.subtasks.newID = newID
	}
}

// WithIndex sets the position of the card within its column.
func WithIndex(index int) Option {
	return func(c *Controller) {
		c.index = index
	}
}

// NewController creates a card for task in Viewing mode.
func NewController(task db.Task, gateway Gateway, onUpdate UpdateFunc, opts ...Option) *Controller {
	if onUpdate == nil {
		onUpdate = func(db.Task) {}
	}

	c := &Controller{
		gateway:  gateway,
		onUpdate: onUpdate,
		now:      time.Now,
		task:     task.Clone(),
		mode:     Viewing,
		subtasks: NewSubtaskEditor(task.Subtasks, nil),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// Task returns the card's mirror of the authoritative task.
func (c *Controller) Task() db.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.task.Clone()
}

// Subtasks returns the subtask draft buffer. Outside EditingSubtasks it equals the
// authoritative sequence.
func (c *Controller) Subtasks() []db.Subtask {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subtasks.Subtasks()
}

// Progress returns the completion percentage of the subtask buffer.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subtasks.Progress()
}

// DragID is the stable draggable identity of the card.
func (c *Controller) DragID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return string(c.task.ID)
}

// Index returns the zero-based position of the card within its column.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.index
}

// SetIndex records a new position supplied by the board after a reorder.
func (c *Controller) SetIndex(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = index
}

// Sync applies a newer authoritative version of the task. Unless subtasks are being edited,
// the subtask buffer is replaced by the new sequence; while they are, the buffer is left alone
// and the local edits win on save. A task older than the mirror is ignored.
func (c *Controller) Sync(task db.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task.ID != c.task.ID {
		return fmt.Errorf("%w: %s is not %s", ErrTaskMismatch, task.ID, c.task.ID)
	}

	if task.UpdatedAt.Before(c.task.UpdatedAt) {
		log.Debug().
			Str("task", string(task.ID)).
			Time("read", task.UpdatedAt).
			Time("current", c.task.UpdatedAt).
			Msg("ignoring stale task")

		return nil
	}

	changed := !db.EqualSubtasks(c.task.Subtasks, task.Subtasks)
	c.task = task.Clone()

	if c.mode == EditingSubtasks {
		if changed {
			log.Debug().Str("task", string(task.ID)).Msg("subtasks changed while editing; keeping local draft")
		}

		return nil
	}

	c.subtasks.Reset(task.Subtasks)

	if changed {
		log.Debug().Str("task", string(task.ID)).Int("subtasks", len(task.Subtasks)).Msg("reconciled subtask draft")
	}

	return nil
}

func (c *Controller) transition(to Mode) {
	log.Debug().Str("task", string(c.task.ID)).Str("from", c.mode.String()).Str("to", to.String()).Msg("card mode change")

	c.mode = to
}

func (c *Controller) require(mode Mode) error {
	if c.mode != mode {
		return fmt.Errorf("%w: card is %s, needs %s", ErrWrongMode, c.mode, mode)
	}

	return nil
}

// BeginTaskEdit enters EditingTask with a draft taken from the authoritative task.
func (c *Controller) BeginTaskEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(Viewing); err != nil {
		return err
	}

	c.fields = NewTaskFieldEditor(c.task)
	c.transition(EditingTask)

	return nil
}

// TaskDraft returns the task draft. The second value is false outside EditingTask.
func (c *Controller) TaskDraft() (TaskDraft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != EditingTask {
		return TaskDraft{}, false
	}

	return c.fields.Draft(), true
}

// SetField changes one field of the task draft.
func (c *Controller) SetField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingTask); err != nil {
		return err
	}

	return c.fields.Set(field, value)
}

// SaveTaskEdit applies the draft to the task, hands the result to the owner and returns to
// Viewing. Persisting the fields is left to the owner, which stores the returned UpdatedAt.
func (c *Controller) SaveTaskEdit() (db.Task, error) {
	c.mu.Lock()

	if err := c.require(EditingTask); err != nil {
		c.mu.Unlock()

		return db.Task{}, err
	}

	c.task = c.fields.Commit(c.task)
	c.task.UpdatedAt = c.now()
	c.fields = nil
	c.transition(Viewing)

	updated := c.task.Clone()
	c.mu.Unlock()

	c.onUpdate(updated)

	return updated, nil
}

// CancelTaskEdit discards the task draft.
func (c *Controller) CancelTaskEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingTask); err != nil {
		return err
	}

	c.fields = nil
	c.transition(Viewing)

	return nil
}

// BeginSubtaskEdit enters EditingSubtasks. The buffer already mirrors the authoritative
// sequence.
func (c *Controller) BeginSubtaskEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(Viewing); err != nil {
		return err
	}

	c.transition(EditingSubtasks)

	return nil
}

// AddSubtask appends a subtask to the buffer. Blank text is ignored and reported by a false
// return, not an error.
func (c *Controller) AddSubtask(text string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingSubtasks); err != nil {
		return false, err
	}

	_, added := c.subtasks.Add(text)

	return added, nil
}

// RemoveSubtask removes a subtask from the buffer. Unknown ids are ignored.
func (c *Controller) RemoveSubtask(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingSubtasks); err != nil {
		return err
	}

	c.subtasks.Remove(id)

	return nil
}

// EditSubtaskText replaces the text of a buffered subtask. Unknown ids are ignored.
func (c *Controller) EditSubtaskText(id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingSubtasks); err != nil {
		return err
	}

	c.subtasks.EditText(id, text)

	return nil
}

// MoveSubtaskUp moves the buffered subtask at index one place up.
func (c *Controller) MoveSubtaskUp(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingSubtasks); err != nil {
		return err
	}

	c.subtasks.MoveUp(index)

	return nil
}

// MoveSubtaskDown moves the buffered subtask at index one place down.
func (c *Controller) MoveSubtaskDown(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingSubtasks); err != nil {
		return err
	}

	c.subtasks.MoveDown(index)

	return nil
}

// CancelSubtaskEdit discards the buffer, resets it from the authoritative sequence and
// returns to Viewing.
func (c *Controller) CancelSubtaskEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.require(EditingSubtasks); err != nil {
		return err
	}

	c.subtasks.Reset(c.task.Subtasks)
	c.transition(Viewing)

	return nil
}

// SaveSubtasks writes the whole buffer to the store in one partial update. On success the
// buffer becomes the authoritative sequence and the card returns to Viewing. On failure the
// buffer and mode are kept and the error wraps ErrPersistence.
func (c *Controller) SaveSubtasks(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()

	if err := c.require(EditingSubtasks); err != nil {
		c.mu.Unlock()

		return err
	}

	id := c.task.ID
	subtasks := c.subtasks.Subtasks()
	c.mu.Unlock()

	updatedAt, err := c.write(ctx, id, subtasks, "saving subtasks")
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.task.Subtasks = db.CloneSubtasks(subtasks)
	c.task.UpdatedAt = updatedAt
	c.subtasks.Reset(subtasks)

	if c.mode == EditingSubtasks {
		c.transition(Viewing)
	}

	updated := c.task.Clone()
	c.mu.Unlock()

	c.onUpdate(updated)

	return nil
}

// ToggleSubtask flips the completion of one subtask and writes the new sequence immediately,
// bypassing the draft cycle. It is only permitted while Viewing. On failure nothing changes.
func (c *Controller) ToggleSubtask(ctx context.Context, subtaskID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()

	if err := c.require(Viewing); err != nil {
		c.mu.Unlock()

		return err
	}

	id := c.task.ID

	subtasks, ok := Toggled(c.subtasks.Subtasks(), subtaskID)
	if !ok {
		c.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrSubtaskNotFound, subtaskID)
	}
	c.mu.Unlock()

	updatedAt, err := c.write(ctx, id, subtasks, "toggling subtask")
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.task.Subtasks = db.CloneSubtasks(subtasks)
	c.task.UpdatedAt = updatedAt

	if c.mode != EditingSubtasks {
		c.subtasks.Reset(subtasks)
	}

	updated := c.task.Clone()
	c.mu.Unlock()

	c.onUpdate(updated)

	return nil
}

func (c *Controller) write(ctx context.Context, id db.TaskID, subtasks []db.Subtask, op string) (time.Time, error) {
	updatedAt := c.now()

	if err := c.gateway.Update(ctx, id, db.Patch{Subtasks: &subtasks, UpdatedAt: updatedAt}); err != nil {
		log.Warn().Err(err).Str("task", string(id)).Msgf("error %s", op)

		return time.Time{}, fmt.Errorf("%w: %s of task %s: %w", ErrPersistence, op, id, err)
	}

	return updatedAt, nil
}

// CommentsOpen reports whether the comments panel is shown.
func (c *Controller) CommentsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.comments
}

// ToggleComments shows or hides the comments panel. Clicks on a card being edited are ignored.
func (c *Controller) ToggleComments() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == Viewing {
		c.comments = !c.comments
	}

	return c.comments
}

// OpenComments shows the comments panel.
func (c *Controller) OpenComments() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.comments = true
}

// CloseComments hides the comments panel. It is the close callback handed to the panel.
func (c *Controller) CloseComments() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.comments = false
}

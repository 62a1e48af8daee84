package card_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/matt-steen/taskcard/pkg/card"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOffline = errors.New("offline")

type call struct {
	id    db.TaskID
	patch db.Patch
}

// fakeGateway records patches. It fails while err is set and, when gate is set, blocks each
// call until a value is received on it.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []call
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (g *fakeGateway) Update(ctx context.Context, id db.TaskID, patch db.Patch) error {
	if g.started != nil {
		g.started <- struct{}{}
	}

	if g.gate != nil {
		<-g.gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return g.err
	}

	g.calls = append(g.calls, call{id: id, patch: patch})

	return nil
}

func (g *fakeGateway) written() [][]db.Subtask {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := [][]db.Subtask{}
	for _, c := range g.calls {
		out = append(out, *c.patch.Subtasks)
	}

	return out
}

type owner struct {
	mu      sync.Mutex
	updates []db.Task
}

func (o *owner) updateTask(task db.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.updates = append(o.updates, task)
}

func (o *owner) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.updates)
}

func sequentialIDs() func() string {
	next := 0

	return func() string {
		next++

		return strconv.Itoa(next)
	}
}

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newCard(task db.Task) (*card.Controller, *fakeGateway, *owner) {
	gateway := &fakeGateway{}
	own := &owner{}

	c := card.NewController(task, gateway, own.updateTask,
		card.WithClock(func() time.Time { return fixedNow }),
		card.WithIDGenerator(sequentialIDs()),
		card.WithIndex(2),
	)

	return c, gateway, own
}

func sampleTask() db.Task {
	return db.Task{
		ID:              "t1",
		Title:           "quarterly report",
		DueDate:         "2024-06-01",
		Priority:        db.PriorityMedium,
		AssignedTo:      []string{"ann", "bo"},
		RelatedCustomer: "acme",
		Tags:            []string{"finance"},
		Subtasks: []db.Subtask{
			{ID: "1", Text: "a"},
			{ID: "2", Text: "b", Completed: true},
		},
	}
}

func TestNewControllerStartsViewing(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, _, _ := newCard(sampleTask())

	assert.Equal(card.Viewing, c.Mode())
	assert.Equal(sampleTask().Subtasks, c.Subtasks())
	assert.Equal(50, c.Progress())
	assert.Equal("t1", c.DragID())
	assert.Equal(2, c.Index())

	c.SetIndex(0)
	assert.Equal(0, c.Index())
}

func TestModesAreExclusive(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, _, _ := newCard(sampleTask())

	assert.Nil(c.BeginTaskEdit())
	assert.ErrorIs(c.BeginSubtaskEdit(), card.ErrWrongMode)
	assert.ErrorIs(c.BeginTaskEdit(), card.ErrWrongMode)
	assert.ErrorIs(c.ToggleSubtask(context.Background(), "1"), card.ErrWrongMode)
	assert.Nil(c.CancelTaskEdit())

	assert.Nil(c.BeginSubtaskEdit())
	assert.ErrorIs(c.BeginTaskEdit(), card.ErrWrongMode)
	assert.ErrorIs(c.ToggleSubtask(context.Background(), "1"), card.ErrWrongMode)
	assert.ErrorIs(c.SetField(card.FieldTitle, "x"), card.ErrWrongMode)
	assert.Nil(c.CancelSubtaskEdit())

	assert.Equal(card.Viewing, c.Mode())

	_, err := c.AddSubtask("late")
	assert.ErrorIs(err, card.ErrWrongMode)
	assert.ErrorIs(c.SaveSubtasks(context.Background()), card.ErrWrongMode)
	_, err = c.SaveTaskEdit()
	assert.ErrorIs(err, card.ErrWrongMode)
}

func TestTaskEditSave(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(sampleTask())

	_, ok := c.TaskDraft()
	assert.False(ok)

	assert.Nil(c.BeginTaskEdit())

	draft, ok := c.TaskDraft()
	assert.True(ok)
	assert.Equal("ann, bo", draft.AssignedTo)
	assert.Equal("finance", draft.Tags)

	assert.Nil(c.SetField(card.FieldTitle, "annual report"))
	assert.Nil(c.SetField(card.FieldPriority, "High"))
	assert.ErrorIs(c.SetField(card.FieldPriority, "Urgent"), db.ErrInvalidPriority)
	assert.Nil(c.SetField(card.FieldAssignedTo, " cy ,, dee "))
	assert.Nil(c.SetField(card.FieldTags, ""))

	updated, err := c.SaveTaskEdit()
	assert.Nil(err)
	assert.Equal(card.Viewing, c.Mode())
	assert.Equal("annual report", updated.Title)
	assert.Equal(db.PriorityHigh, updated.Priority)
	assert.Equal([]string{"cy", "dee"}, updated.AssignedTo)
	assert.Equal([]string{}, updated.Tags)
	assert.Equal(updated, c.Task())
	assert.Equal(fixedNow, updated.UpdatedAt)

	// task fields are persisted by the owner, not by the card
	assert.Empty(gateway.written())
	assert.Equal(1, own.count())
	assert.Equal(updated, own.updates[0])
}

func TestTaskEditCancel(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, _, own := newCard(sampleTask())

	assert.Nil(c.BeginTaskEdit())
	assert.Nil(c.SetField(card.FieldTitle, "scrap"))
	assert.Nil(c.CancelTaskEdit())

	assert.Equal("quarterly report", c.Task().Title)
	assert.Equal(0, own.count())

	// a new edit starts from the authoritative task, not the discarded draft
	assert.Nil(c.BeginTaskEdit())
	draft, _ := c.TaskDraft()
	assert.Equal("quarterly report", draft.Title)
}

func TestReconcileWhileViewing(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, _, _ := newCard(db.Task{ID: "t1", Subtasks: []db.Subtask{{ID: "1", Text: "a"}}})

	external := []db.Subtask{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}
	assert.Nil(c.Sync(db.Task{ID: "t1", Subtasks: external}))

	assert.Equal(external, c.Subtasks())
}

func TestReconcileWhileEditingTask(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, _, _ := newCard(db.Task{ID: "t1", Subtasks: []db.Subtask{{ID: "1", Text: "a"}}})

	assert.Nil(c.BeginTaskEdit())

	external := []db.Subtask{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}
	assert.Nil(c.Sync(db.Task{ID: "t1", Subtasks: external}))

	assert.Equal(external, c.Subtasks())
}

func TestNoReconcileWhileEditingSubtasks(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	initial := []db.Subtask{{ID: "1", Text: "a"}}
	c, gateway, _ := newCard(db.Task{ID: "t1", Subtasks: initial})

	assert.Nil(c.BeginSubtaskEdit())

	external := []db.Subtask{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}
	assert.Nil(c.Sync(db.Task{ID: "t1", Subtasks: external}))

	assert.Equal(initial, c.Subtasks())
	assert.Equal(external, c.Task().Subtasks)

	// the local draft wins on save
	assert.Nil(c.SaveSubtasks(context.Background()))
	assert.Equal([][]db.Subtask{initial}, gateway.written())
	assert.Equal(initial, c.Task().Subtasks)
}

func TestCancelSubtaskEditResetsFromLatest(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, _, own := newCard(db.Task{ID: "t1", Subtasks: []db.Subtask{{ID: "1", Text: "a"}}})

	assert.Nil(c.BeginSubtaskEdit())
	added, err := c.AddSubtask("local only")
	assert.Nil(err)
	assert.True(added)

	external := []db.Subtask{{ID: "9", Text: "from elsewhere"}}
	assert.Nil(c.Sync(db.Task{ID: "t1", Subtasks: external}))
	assert.Nil(c.CancelSubtaskEdit())

	assert.Equal(card.Viewing, c.Mode())
	assert.Equal(external, c.Subtasks())
	assert.Equal(0, own.count())
}

func TestSyncOtherTask(t *testing.T) {
	t.Parallel()

	c, _, _ := newCard(sampleTask())

	assert.ErrorIs(t, c.Sync(db.Task{ID: "t2"}), card.ErrTaskMismatch)
	assert.Equal(t, "quarterly report", c.Task().Title)
}

func TestSubtaskEditSave(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(sampleTask())

	assert.Nil(c.BeginSubtaskEdit())

	added, err := c.AddSubtask("   ")
	assert.Nil(err)
	assert.False(added)

	assert.Nil(c.EditSubtaskText("1", ""))
	assert.Nil(c.RemoveSubtask("2"))
	assert.Nil(c.RemoveSubtask("missing"))

	want := []db.Subtask{{ID: "1", Text: ""}}
	assert.Equal(want, c.Subtasks())
	// the authoritative mirror is untouched until the save
	assert.Equal(sampleTask().Subtasks, c.Task().Subtasks)

	assert.Nil(c.SaveSubtasks(context.Background()))

	assert.Equal(card.Viewing, c.Mode())
	assert.Equal([][]db.Subtask{want}, gateway.written())
	assert.Equal(db.TaskID("t1"), gateway.calls[0].id)
	assert.Equal(fixedNow, gateway.calls[0].patch.UpdatedAt)
	assert.Nil(gateway.calls[0].patch.Title)
	assert.Equal(want, c.Task().Subtasks)
	assert.Equal(fixedNow, c.Task().UpdatedAt)
	assert.Equal(1, own.count())
	assert.Equal(want, own.updates[0].Subtasks)
}

func TestSubtaskSaveFailureKeepsDraft(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(sampleTask())
	gateway.err = errOffline

	assert.Nil(c.BeginSubtaskEdit())
	_, err := c.AddSubtask("keep me")
	assert.Nil(err)

	err = c.SaveSubtasks(context.Background())
	assert.ErrorIs(err, card.ErrPersistence)
	assert.ErrorIs(err, errOffline)

	assert.Equal(card.EditingSubtasks, c.Mode())
	assert.Equal(3, len(c.Subtasks()))
	assert.Equal(sampleTask().Subtasks, c.Task().Subtasks)
	assert.Equal(0, own.count())

	// retrying once the store is back succeeds with the same draft
	gateway.mu.Lock()
	gateway.err = nil
	gateway.mu.Unlock()

	assert.Nil(c.SaveSubtasks(context.Background()))
	assert.Equal("keep me", c.Task().Subtasks[2].Text)
	assert.Equal(1, own.count())
}

func TestToggleSubtask(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(sampleTask())

	assert.Nil(c.ToggleSubtask(context.Background(), "1"))

	want := []db.Subtask{{ID: "1", Text: "a", Completed: true}, {ID: "2", Text: "b", Completed: true}}
	assert.Equal([][]db.Subtask{want}, gateway.written())
	assert.Equal(want, c.Subtasks())
	assert.Equal(want, c.Task().Subtasks)
	assert.Equal(100, c.Progress())
	assert.Equal(card.Viewing, c.Mode())
	assert.Equal(1, own.count())

	assert.ErrorIs(c.ToggleSubtask(context.Background(), "missing"), card.ErrSubtaskNotFound)
	assert.Equal(1, own.count())
}

func TestToggleSubtaskFailure(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(sampleTask())
	gateway.err = errOffline

	err := c.ToggleSubtask(context.Background(), "1")
	assert.ErrorIs(err, card.ErrPersistence)

	assert.Equal(sampleTask().Subtasks, c.Subtasks())
	assert.Equal(sampleTask().Subtasks, c.Task().Subtasks)
	assert.Equal(0, own.count())
}

func TestDoubleToggleIsSerialized(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(db.Task{ID: "t1", Subtasks: []db.Subtask{{ID: "1", Text: "a"}}})
	gateway.gate = make(chan struct{})
	gateway.started = make(chan struct{})

	errs := make(chan error, 2)

	go func() { errs <- c.ToggleSubtask(context.Background(), "1") }()
	<-gateway.started

	// the second toggle cannot reach the store until the first write resolves
	go func() { errs <- c.ToggleSubtask(context.Background(), "1") }()

	gateway.gate <- struct{}{}
	<-gateway.started
	gateway.gate <- struct{}{}

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	assert.Equal([][]db.Subtask{
		{{ID: "1", Text: "a", Completed: true}},
		{{ID: "1", Text: "a", Completed: false}},
	}, gateway.written())
	assert.False(c.Subtasks()[0].Completed)
	assert.Equal(2, own.count())
}

func TestSyncIgnoresStaleTask(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, _ := newCard(sampleTask())

	// read before the toggle was stored, applied after it
	stale := c.Task()

	assert.Nil(c.ToggleSubtask(context.Background(), "1"))
	assert.Nil(c.Sync(stale))

	assert.True(c.Subtasks()[0].Completed)
	assert.True(c.Task().Subtasks[0].Completed)

	assert.Nil(c.ToggleSubtask(context.Background(), "2"))

	written := gateway.written()
	assert.Equal([]db.Subtask{
		{ID: "1", Text: "a", Completed: true},
		{ID: "2", Text: "b", Completed: false},
	}, written[len(written)-1])

	// a newer read still reconciles
	newer := sampleTask()
	newer.UpdatedAt = fixedNow.Add(time.Second)
	assert.Nil(c.Sync(newer))
	assert.Equal(sampleTask().Subtasks, c.Subtasks())
}

func TestToggleResolvingDuringSubtaskEdit(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(sampleTask())
	gateway.gate = make(chan struct{})
	gateway.started = make(chan struct{})

	errs := make(chan error, 1)

	go func() { errs <- c.ToggleSubtask(context.Background(), "1") }()
	<-gateway.started

	assert.Nil(c.BeginSubtaskEdit())

	gateway.gate <- struct{}{}
	require.NoError(t, <-errs)

	assert.Equal(card.EditingSubtasks, c.Mode())
	assert.Equal(sampleTask().Subtasks, c.Subtasks())
	assert.True(c.Task().Subtasks[0].Completed)
	assert.Equal(1, own.count())
}

func TestComments(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, _, _ := newCard(sampleTask())

	assert.True(c.ToggleComments())
	assert.False(c.ToggleComments())

	assert.Nil(c.BeginTaskEdit())
	assert.False(c.ToggleComments())
	assert.False(c.CommentsOpen())

	c.OpenComments()
	assert.True(c.CommentsOpen())
	c.CloseComments()
	assert.False(c.CommentsOpen())
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	c, gateway, own := newCard(db.Task{ID: "t1", Subtasks: []db.Subtask{}})

	assert.Nil(c.BeginSubtaskEdit())

	for _, text := range []string{"call client", "send invoice"} {
		added, err := c.AddSubtask(text)
		assert.Nil(err)
		assert.True(added)
	}

	assert.Nil(c.MoveSubtaskUp(1))
	assert.Nil(c.SaveSubtasks(context.Background()))

	assert.Equal(card.Viewing, c.Mode())

	saved := gateway.written()[0]
	assert.Equal(2, len(saved))
	assert.Equal("send invoice", saved[0].Text)
	assert.False(saved[0].Completed)
	assert.Equal("call client", saved[1].Text)
	assert.False(saved[1].Completed)
	assert.Equal(saved, c.Task().Subtasks)
	assert.Equal(saved, own.updates[0].Subtasks)
}

package db_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dbPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "test.sqlite")
}

func getDB(t *testing.T, filename string) *db.Database {
	t.Helper()

	database, err := db.NewDatabase(context.Background(), filename)
	require.NoError(t, err)

	t.Cleanup(func() { database.Close() })

	return database
}

func rawConn(t *testing.T, filename string) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", filename)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return conn
}

func addTask(t *testing.T, database *db.Database, title string) *db.Task {
	t.Helper()

	task, err := database.NewTask(context.Background(), title, db.PriorityMedium)
	require.NoError(t, err)

	return task
}

func TestNewDatabaseBadFile(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	database, err := db.NewDatabase(context.Background(), "/alwfkjasfd/asdflkjdsal.sqlite")
	assert.Nil(database)
	assert.NotNil(err)
}

func TestNewDatabaseIdempotent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	filename := dbPath(t)

	database, err := db.NewDatabase(context.Background(), filename)
	assert.Nil(err)
	assert.Equal(0, len(database.Tasks))
	assert.Equal(5, len(database.Statuses))
	assert.Nil(database.Close())

	database2 := getDB(t, filename)
	assert.Equal(0, len(database2.Tasks))
	assert.Equal(5, len(database2.Statuses))
}

func TestNewTask(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	database := getDB(t, dbPath(t))

	first := addTask(t, database, "  call client ")
	second := addTask(t, database, "send invoice")

	assert.Equal("call client", first.Title)
	assert.NotEqual(first.ID, second.ID)
	assert.Equal(db.StatusOpen, second.Status)
	assert.Equal(1, second.Rank)

	// confirm that the new task was added to the end of the list for the open status
	open := database.Statuses[db.StatusOpen]
	assert.Equal(second, open.Tasks[second.Rank])
}

func TestNewTaskInvalidPriority(t *testing.T) {
	t.Parallel()

	database := getDB(t, dbPath(t))

	_, err := database.NewTask(context.Background(), "x", db.Priority("Urgent"))
	assert.ErrorIs(t, err, db.ErrInvalidPriority)
}

func TestUpdatePartial(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	filename := dbPath(t)
	database := getDB(t, filename)
	task := addTask(t, database, "wash car")

	subtasks := []db.Subtask{
		{ID: "1", Text: "buy soap", Completed: true},
		{ID: "2", Text: "rinse", Completed: false},
	}
	updatedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	err := database.Update(context.Background(), task.ID, db.Patch{Subtasks: &subtasks, UpdatedAt: updatedAt})
	assert.Nil(err)

	loaded, err := database.LoadTask(context.Background(), task.ID)
	assert.Nil(err)
	assert.Equal("wash car", loaded.Title)
	assert.Equal(db.PriorityMedium, loaded.Priority)
	assert.True(updatedAt.Equal(loaded.UpdatedAt))

	if diff := cmp.Diff(subtasks, loaded.Subtasks); diff != "" {
		t.Errorf("subtasks mismatch (-want +got):\n%s", diff)
	}

	// the in-memory copy belongs to the owner and is untouched by Update
	assert.Empty(task.Subtasks)
}

func TestUpdateFields(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	filename := dbPath(t)
	database := getDB(t, filename)
	task := addTask(t, database, "wash car")

	title := "wash truck"
	priority := db.PriorityHigh
	assigned := []string{"ann", "bo"}
	customer := "acme"
	tags := []string{"home"}

	err := database.Update(context.Background(), task.ID, db.Patch{
		Title:           &title,
		Priority:        &priority,
		AssignedTo:      &assigned,
		RelatedCustomer: &customer,
		Tags:            &tags,
		UpdatedAt:       time.Now(),
	})
	assert.Nil(err)

	reloaded := getDB(t, filename)
	got, ok := reloaded.Task(task.ID)
	assert.True(ok)
	assert.Equal(title, got.Title)
	assert.Equal(priority, got.Priority)
	assert.Equal(assigned, got.AssignedTo)
	assert.Equal(customer, got.RelatedCustomer)
	assert.Equal(tags, got.Tags)
	assert.Equal([]db.Subtask{}, got.Subtasks)
}

func TestUpdateUnknownTask(t *testing.T) {
	t.Parallel()

	database := getDB(t, dbPath(t))
	title := "nope"

	err := database.Update(context.Background(), "missing", db.Patch{Title: &title, UpdatedAt: time.Now()})
	assert.ErrorIs(t, err, db.ErrTaskNotFound)

	_, err = database.LoadTask(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrTaskNotFound)
}

func TestUpdateInvalidPriority(t *testing.T) {
	t.Parallel()

	database := getDB(t, dbPath(t))
	task := addTask(t, database, "wash car")
	priority := db.Priority("Someday")

	err := database.Update(context.Background(), task.ID, db.Patch{Priority: &priority, UpdatedAt: time.Now()})
	assert.ErrorIs(t, err, db.ErrInvalidPriority)
}

func TestReplaceKeepsPlacement(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	database := getDB(t, dbPath(t))
	addTask(t, database, "first")
	task := addTask(t, database, "second")

	updated := task.Clone()
	updated.Title = "second, renamed"
	updated.Status = db.StatusDone
	updated.Rank = 7

	assert.Nil(database.Replace(updated))
	assert.Equal("second, renamed", task.Title)
	assert.Equal(db.StatusOpen, task.Status)
	assert.Equal(1, task.Rank)

	assert.ErrorIs(database.Replace(db.Task{ID: "missing"}), db.ErrTaskNotFound)
}

func TestChangeStatus(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	filename := dbPath(t)
	database := getDB(t, filename)
	first := addTask(t, database, "first")
	second := addTask(t, database, "second")
	third := addTask(t, database, "third")

	err := database.ChangeStatus(context.Background(), first, db.StatusDone)
	assert.Nil(err)

	assert.Equal(db.StatusDone, first.Status)
	assert.Equal(0, first.Rank)
	assert.Equal(0, second.Rank)
	assert.Equal(1, third.Rank)
	assert.Equal([]*db.Task{second, third}, database.Statuses[db.StatusOpen].Tasks)

	reloaded := getDB(t, filename)
	open := reloaded.Statuses[db.StatusOpen].Tasks
	assert.Equal(2, len(open))
	assert.Equal("second", open[0].Title)
	assert.Equal("third", open[1].Title)
	assert.Equal("first", reloaded.Statuses[db.StatusDone].Tasks[0].Title)

	assert.ErrorIs(database.ChangeStatus(context.Background(), second, "nowhere"), db.ErrUnknownStatus)
}

func TestMoveUpDown(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	filename := dbPath(t)
	database := getDB(t, filename)
	first := addTask(t, database, "first")
	second := addTask(t, database, "second")

	// boundaries are no-ops
	assert.Nil(database.MoveUp(context.Background(), first))
	assert.Nil(database.MoveDown(context.Background(), second))
	assert.Equal(0, first.Rank)

	assert.Nil(database.MoveUp(context.Background(), second))
	assert.Equal(0, second.Rank)
	assert.Equal(1, first.Rank)

	reloaded := getDB(t, filename)
	open := reloaded.Statuses[db.StatusOpen].Tasks
	assert.Equal("second", open[0].Title)
	assert.Equal("first", open[1].Title)

	assert.Nil(database.MoveDown(context.Background(), second))
	assert.Equal([]*db.Task{first, second}, database.Statuses[db.StatusOpen].Tasks)
}

func TestLegacyListShapes(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	filename := dbPath(t)
	database := getDB(t, filename)
	task := addTask(t, database, "legacy")

	// write list columns the way older clients did: a bare string and null
	conn := rawConn(t, filename)
	_, err := conn.Exec(`UPDATE task SET assigned_to = '"ann"', tags = 'null' WHERE id = ?`, task.ID)
	assert.Nil(err)

	loaded, err := database.LoadTask(context.Background(), task.ID)
	assert.Nil(err)
	assert.Equal([]string{"ann"}, loaded.AssignedTo)
	assert.Equal([]string{}, loaded.Tags)
}

func TestExport(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	database := getDB(t, dbPath(t))
	first := addTask(t, database, "first")
	addTask(t, database, "second")
	assert.Nil(database.ChangeStatus(context.Background(), first, db.StatusDone))

	path := filepath.Join(t.TempDir(), "export.json")
	assert.Nil(database.Export(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var tasks []db.Task
	require.NoError(t, json.Unmarshal(data, &tasks))

	titles := []string{}
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}

	// open sorts before done
	assert.Equal([]string{"second", "first"}, titles)
}

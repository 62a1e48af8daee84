package db

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"

	// use the sqlite db driver.
	_ "github.com/mattn/go-sqlite3"
)

//go:embed base.sql
var baseSQL string

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrUnknownStatus   = errors.New("unknown status")
)

const taskColumns = `t.id, t.title, t.due_date, t.priority, t.top_priority, t.assigned_to,
	t.related_customer, t.tags, t.subtasks, s.name, t.rank, t.created_at, t.updated_at`

// Database manages the db connection and the owner's in-memory copy of the board.
//
// Statuses, Tasks and the methods that change them belong to the UI goroutine. Update and
// LoadTask only touch the connection and may be called from any goroutine.
type Database struct {
	conn     *sql.DB
	Statuses map[string]*Status
	Tasks    []*Task
}

// NewDatabase connects to the sqlite database at the given filename, initializes the structure
// if not present, and loads existing data into memory.
func NewDatabase(ctx context.Context, filename string) (*Database, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", filename))
	if err != nil {
		return nil, fmt.Errorf("error connecting to sqlite db at %s: %w", filename, err)
	}

	database := Database{
		conn:     conn,
		Statuses: map[string]*Status{},
		Tasks:    []*Task{},
	}

	if err = database.initialize(ctx); err != nil {
		conn.Close()

		return nil, err
	}

	if err = database.loadData(ctx); err != nil {
		conn.Close()

		return nil, err
	}

	return &database, nil
}

func (d *Database) initialize(ctx context.Context) error {
	// run idempotent setup sql to create empty tables if they don't exist
	if _, err := d.conn.ExecContext(ctx, baseSQL); err != nil {
		return fmt.Errorf("error running base sql: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.conn.Close()
}

func (d *Database) loadData(ctx context.Context) error {
	if err := d.loadStatuses(ctx); err != nil {
		return err
	}

	return d.loadTasks(ctx)
}

func (d *Database) loadStatuses(ctx context.Context) error {
	rows, err := d.conn.QueryContext(ctx, `SELECT id, name FROM status`)
	if err != nil {
		return fmt.Errorf("error loading statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status Status

		if err := rows.Scan(&status.id, &status.Name); err != nil {
			return fmt.Errorf("error scanning status: %w", err)
		}

		status.Tasks = []*Task{}
		d.Statuses[status.Name] = &status
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error scanning statuses: %w", err)
	}

	return nil
}

func (d *Database) loadTasks(ctx context.Context) error {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+taskColumns+`
		FROM task t JOIN status s ON s.id = t.status_id
		ORDER BY t.status_id, t.rank`)
	if err != nil {
		return fmt.Errorf("error loading tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return err
		}

		d.Tasks = append(d.Tasks, task)

		if status, ok := d.Statuses[task.Status]; ok {
			status.Tasks = append(status.Tasks, task)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error scanning tasks: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		task                          Task
		priority                      string
		assignedTo, tags, subtasksRaw string
	)

	err := row.Scan(
		&task.ID, &task.Title, &task.DueDate, &priority, &task.TopPriority, &assignedTo,
		&task.RelatedCustomer, &tags, &subtasksRaw, &task.Status, &task.Rank, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error scanning task: %w", err)
	}

	task.Priority = Priority(priority)

	if task.AssignedTo, err = decodeList(assignedTo); err != nil {
		return nil, fmt.Errorf("error reading assigned_to of task %s: %w", task.ID, err)
	}

	if task.Tags, err = decodeList(tags); err != nil {
		return nil, fmt.Errorf("error reading tags of task %s: %w", task.ID, err)
	}

	if task.Subtasks, err = decodeSubtasks(subtasksRaw); err != nil {
		return nil, fmt.Errorf("error reading subtasks of task %s: %w", task.ID, err)
	}

	return &task, nil
}

// Task returns the in-memory copy of the task with the given id.
func (d *Database) Task(id TaskID) (*Task, bool) {
	for _, task := range d.Tasks {
		if task.ID == id {
			return task, true
		}
	}

	return nil, false
}

// LoadTask reads the current authoritative version of a task from the db.
func (d *Database) LoadTask(ctx context.Context, id TaskID) (Task, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+taskColumns+`
		FROM task t JOIN status s ON s.id = t.status_id
		WHERE t.id = ?`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	if err != nil {
		return Task{}, err
	}

	return *task, nil
}

// NewTask creates a new task with the given title; the task is added at the end of the open list.
func (d *Database) NewTask(ctx context.Context, title string, priority Priority) (*Task, error) {
	if _, err := ParsePriority(string(priority)); err != nil {
		return nil, err
	}

	open := d.Statuses[StatusOpen]

	now := time.Now()
	task := &Task{
		ID:         TaskID(uuid.New().String()),
		Title:      strings.TrimSpace(title),
		Priority:   priority,
		AssignedTo: []string{},
		Tags:       []string{},
		Subtasks:   []Subtask{},
		Status:     open.Name,
		Rank:       len(open.Tasks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO task (id, title, priority, status_id, rank, created_at, updated_at)
		     VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Priority, open.id, task.Rank, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error adding task '%s': %w", title, err)
	}

	open.Tasks = append(open.Tasks, task)
	d.Tasks = append(d.Tasks, task)

	return task, nil
}

// Update writes the present fields of the patch and updated_at to the task row. Only the row
// is changed; the in-memory copy is refreshed by the owner through Replace.
func (d *Database) Update(ctx context.Context, id TaskID, patch Patch) error {
	sets, args, err := patchColumns(patch)
	if err != nil {
		return err
	}

	args = append(args, id)

	result, err := d.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE task SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("error updating task %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating task %s: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	log.Debug().Str("task", string(id)).Strs("columns", sets).Msg("updated task")

	return nil
}

func patchColumns(patch Patch) ([]string, []interface{}, error) {
	sets := []string{}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	addJSON := func(column string, value interface{}) error {
		encoded, err := encodeJSON(value)
		if err != nil {
			return err
		}

		add(column, encoded)

		return nil
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}

	if patch.DueDate != nil {
		add("due_date", *patch.DueDate)
	}

	if patch.Priority != nil {
		if _, err := ParsePriority(string(*patch.Priority)); err != nil {
			return nil, nil, err
		}

		add("priority", string(*patch.Priority))
	}

	if patch.AssignedTo != nil {
		if err := addJSON("assigned_to", CloneStrings(*patch.AssignedTo)); err != nil {
			return nil, nil, err
		}
	}

	if patch.RelatedCustomer != nil {
		add("related_customer", *patch.RelatedCustomer)
	}

	if patch.Tags != nil {
		if err := addJSON("tags", CloneStrings(*patch.Tags)); err != nil {
			return nil, nil, err
		}
	}

	if patch.Subtasks != nil {
		if err := addJSON("subtasks", CloneSubtasks(*patch.Subtasks)); err != nil {
			return nil, nil, err
		}
	}

	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	add("updated_at", updatedAt)

	return sets, args, nil
}

// Replace refreshes the in-memory copy of a task with a newer value. The column placement of
// the existing copy is kept.
func (d *Database) Replace(task Task) error {
	current, ok := d.Task(task.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, task.ID)
	}

	status, rank := current.Status, current.Rank
	*current = task.Clone()
	current.Status, current.Rank = status, rank

	return nil
}

// ChangeStatus moves the task to the end of the list for the given status and closes the gap
// it leaves in its old list.
func (d *Database) ChangeStatus(ctx context.Context, task *Task, to string) error {
	if task == nil {
		return fmt.Errorf("%w: no task selected", ErrTaskNotFound)
	}

	from, ok := d.Statuses[task.Status]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownStatus, task.Status)
	}

	target, ok := d.Statuses[to]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownStatus, to)
	}

	if from == target {
		return nil
	}

	oldRank := task.Rank
	newRank := len(target.Tasks)

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE task SET status_id = ?, rank = ?, updated_at = ? WHERE id = ?`,
			target.id, newRank, time.Now(), task.ID,
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE task SET rank = rank - 1 WHERE status_id = ? AND rank > ?`, from.id, oldRank)

		return err
	})
	if err != nil {
		return fmt.Errorf("error changing status of task '%s' to %s: %w", task.Title, to, err)
	}

	from.Tasks = append(from.Tasks[:oldRank], from.Tasks[oldRank+1:]...)
	for _, t := range from.Tasks[oldRank:] {
		t.Rank--
	}

	task.Status = target.Name
	task.Rank = newRank
	target.Tasks = append(target.Tasks, task)

	return nil
}

// MoveUp swaps the task with the one ranked directly above it. It is a no-op for the first task.
func (d *Database) MoveUp(ctx context.Context, task *Task) error {
	if task == nil || task.Rank == 0 {
		return nil
	}

	return d.swap(ctx, task, task.Rank-1)
}

// MoveDown swaps the task with the one ranked directly below it. It is a no-op for the last task.
func (d *Database) MoveDown(ctx context.Context, task *Task) error {
	if task == nil {
		return nil
	}

	status, ok := d.Statuses[task.Status]
	if !ok || task.Rank >= len(status.Tasks)-1 {
		return nil
	}

	return d.swap(ctx, task, task.Rank+1)
}

func (d *Database) swap(ctx context.Context, task *Task, rank int) error {
	status, ok := d.Statuses[task.Status]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownStatus, task.Status)
	}

	other := status.Tasks[rank]

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE task SET rank = ? WHERE id = ?`, rank, task.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `UPDATE task SET rank = ? WHERE id = ?`, task.Rank, other.ID)

		return err
	})
	if err != nil {
		return fmt.Errorf("error moving task '%s': %w", task.Title, err)
	}

	status.Tasks[rank], status.Tasks[task.Rank] = task, other
	other.Rank, task.Rank = task.Rank, rank

	return nil
}

func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Msg("error rolling back transaction")
		}

		return err
	}

	return tx.Commit()
}

// Export writes every task as indented JSON to path, ordered by status and rank. The file is
// replaced atomically.
func (d *Database) Export(path string) error {
	tasks := make([]Task, 0, len(d.Tasks))
	for _, task := range d.Tasks {
		tasks = append(tasks, task.Clone())
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Status != tasks[j].Status {
			return d.statusID(tasks[i].Status) < d.statusID(tasks[j].Status)
		}

		return tasks[i].Rank < tasks[j].Rank
	})

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding export: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error writing export to %s: %w", path, err)
	}

	return nil
}

func (d *Database) statusID(name string) int {
	if status, ok := d.Statuses[name]; ok {
		return status.id
	}

	return 0
}

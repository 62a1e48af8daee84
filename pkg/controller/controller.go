package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskcard/pkg/card"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	titleRatio = 3

	pageCard     = "card"
	pageTaskForm = "taskForm"
	pageSubtasks = "subtasks"
	pageNewTask  = "newTask"
	pageComments = "comments"
)

// Controller mediates between the model and the view. It owns the board: it holds the
// in-memory copy of every task and receives the open card's owner callbacks.
type Controller struct {
	ctx        context.Context
	cancel     context.CancelFunc
	db         *db.Database
	app        *tview.Application
	pages      *tview.Pages
	refresh    time.Duration
	exportPath string

	message        *tview.TextView
	statusTables   map[string]*tview.Table
	selectedTask   *db.Task
	selectedStatus *db.Status

	cardMu sync.Mutex
	card   *card.Controller

	cardHeader      *tview.TextView
	cardView        *tview.TextView
	subtaskTable    *tview.Table
	selectedSubtask int

	taskForm        *tview.Form
	subtaskForm     *tview.Form
	subtaskDraft    *tview.Table
	selectedDraft   int
	subtaskText     *tview.InputField
	newSubtaskText  *tview.InputField
	newTaskForm     *tview.Form
	formHeaderTexts map[string]*tview.TextView
	savingSubtasks  bool

	events     map[tcell.Key]KeyEvent
	cardEvents map[tcell.Key]KeyEvent
	formEvents map[tcell.Key]KeyEvent
}

// KeyEvent defines an event associated with a keypress.
type KeyEvent struct {
	Description string
	Action      func(*tcell.EventKey) *tcell.EventKey
}

// NewController creates a new Controller to run the app. refresh is how often the open card is
// reloaded from the db; zero disables it. exportPath is where the export shortcut writes.
func NewController(ctx context.Context, database *db.Database, refresh time.Duration, exportPath string) (*Controller, error) {
	if database == nil {
		return nil, fmt.Errorf("no database")
	}

	ctx, cancel := context.WithCancel(ctx)

	c := Controller{
		ctx:             ctx,
		cancel:          cancel,
		db:              database,
		app:             tview.NewApplication(),
		pages:           tview.NewPages(),
		refresh:         refresh,
		exportPath:      exportPath,
		message:         tview.NewTextView().SetDynamicColors(true),
		statusTables:    map[string]*tview.Table{},
		formHeaderTexts: map[string]*tview.TextView{},
	}

	initKeys()
	c.initEvents()

	return &c, nil
}

// Go starts the app and blocks until it exits.
func (c *Controller) Go() error {
	defer c.cancel()

	for _, status := range statusOrder() {
		c.pages.AddPage(pageName(status), c.getStatusGrid(status), true, false)
	}

	c.pages.AddPage(pageCard, c.getCardGrid(), true, false)
	c.pages.AddPage(pageTaskForm, c.getTaskFormGrid(), true, false)
	c.pages.AddPage(pageSubtasks, c.getSubtaskGrid(), true, false)
	c.pages.AddPage(pageNewTask, c.getNewTaskGrid(), true, false)

	c.showStatus(db.StatusOpen)

	if c.refresh > 0 {
		go c.poll()
	}

	if err := c.app.SetRoot(c.pages, true).Run(); err != nil {
		return fmt.Errorf("error running app: %w", err)
	}

	return nil
}

func pageName(status string) string {
	return "status-" + status
}

func statusOrder() []string {
	return []string{db.StatusOpen, db.StatusOnHold, db.StatusDone, db.StatusClosed, db.StatusAbandoned}
}

func (c *Controller) handleKeys(evt *tcell.EventKey) *tcell.EventKey {
	if k, ok := c.events[AsKey(evt)]; ok {
		return k.Action(evt)
	}

	return evt
}

func (c *Controller) handleCardKeys(evt *tcell.EventKey) *tcell.EventKey {
	if k, ok := c.cardEvents[AsKey(evt)]; ok {
		return k.Action(evt)
	}

	return evt
}

// forms only react to special keys so typing is never captured.
func (c *Controller) handleFormKeys(evt *tcell.EventKey) *tcell.EventKey {
	if k, ok := c.formEvents[evt.Key()]; ok {
		return k.Action(evt)
	}

	return evt
}

func (c *Controller) openCard() *card.Controller {
	c.cardMu.Lock()
	defer c.cardMu.Unlock()

	return c.card
}

func (c *Controller) setOpenCard(cc *card.Controller) {
	c.cardMu.Lock()
	defer c.cardMu.Unlock()

	c.card = cc
}

// onTaskUpdated is the owner callback of the open card. It may be called from a write
// goroutine, so the board is refreshed on the UI goroutine.
func (c *Controller) onTaskUpdated(task db.Task) {
	go c.app.QueueUpdateDraw(func() {
		if err := c.db.Replace(task); err != nil {
			log.Warn().Err(err).Str("task", string(task.ID)).Msg("error refreshing board copy")

			return
		}

		c.renderCard()
	})
}

// poll reloads the open card's task so changes made elsewhere reach the card.
func (c *Controller) poll() {
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		cc := c.openCard()
		if cc == nil {
			continue
		}

		task, err := c.db.LoadTask(c.ctx, db.TaskID(cc.DragID()))
		if err != nil {
			log.Warn().Err(err).Str("task", cc.DragID()).Msg("error reloading task")

			continue
		}

		c.app.QueueUpdateDraw(func() {
			// a write may have finished since the read
			if task.UpdatedAt.Before(cc.Task().UpdatedAt) {
				log.Debug().Str("task", string(task.ID)).Msg("skipping stale reload")

				return
			}

			if err := c.db.Replace(task); err != nil {
				log.Warn().Err(err).Str("task", string(task.ID)).Msg("error refreshing board copy")
			}

			if err := cc.Sync(task); err != nil {
				log.Warn().Err(err).Msg("error syncing card")

				return
			}

			c.renderCard()
		})
	}
}

func (c *Controller) export() {
	if err := c.db.Export(c.exportPath); err != nil {
		log.Warn().Err(err).Msg("error exporting tasks")
		c.setMessage(fmt.Sprintf("[red]export failed: %s", err))

		return
	}

	log.Info().Str("path", c.exportPath).Msg("exported tasks")
	c.setMessage(fmt.Sprintf("[green]exported to %s", c.exportPath))
}

func (c *Controller) exit() {
	c.cancel()
	c.app.Stop()

	log.Info().Msg("terminating application")
}

package controller

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rs/zerolog/log"
)

func (c *Controller) initEvents() {
	c.events = map[tcell.Key]KeyEvent{}
	c.cardEvents = map[tcell.Key]KeyEvent{}
	c.formEvents = map[tcell.Key]KeyEvent{}

	c.initShowEvents(c.events)
	c.initMoveEvents(c.events)
	c.initBoardEvents(c.events)
	c.initExitEvent(c.events)

	c.initCardEvents(c.cardEvents)
	c.initExitEvent(c.cardEvents)

	c.formEvents[tcell.KeyEscape] = KeyEvent{
		Description: "Cancel",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.cancelForm()

			return nil
		},
	}
}

func (c *Controller) initExitEvent(events map[tcell.Key]KeyEvent) {
	events[KeyQ] = KeyEvent{
		Description: "Exit",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.exit()

			return nil
		},
	}
}

func (c *Controller) getShowAction(status string) func(key *tcell.EventKey) *tcell.EventKey {
	return func(key *tcell.EventKey) *tcell.EventKey {
		c.showStatus(status)

		return nil
	}
}

func (c *Controller) initShowEvents(events map[tcell.Key]KeyEvent) {
	events[KeyShiftO] = KeyEvent{
		Description: "Show Open",
		Action:      c.getShowAction(db.StatusOpen),
	}

	events[KeyShiftC] = KeyEvent{
		Description: "Show Closed",
		Action:      c.getShowAction(db.StatusClosed),
	}

	events[KeyShiftD] = KeyEvent{
		Description: "Show Done",
		Action:      c.getShowAction(db.StatusDone),
	}

	events[KeyShiftH] = KeyEvent{
		Description: "Show On Hold",
		Action:      c.getShowAction(db.StatusOnHold),
	}

	events[KeyShiftA] = KeyEvent{
		Description: "Show Abandoned",
		Action:      c.getShowAction(db.StatusAbandoned),
	}
}

func (c *Controller) getMoveAction(status string) func(key *tcell.EventKey) *tcell.EventKey {
	return func(key *tcell.EventKey) *tcell.EventKey {
		if c.selectedTask == nil {
			return nil
		}

		from := c.selectedStatus.Name

		err := c.db.ChangeStatus(c.ctx, c.selectedTask, status)
		if err != nil {
			log.Warn().Err(err).Msgf(
				"error while trying to change status from %s to %s for task %s.",
				from,
				status,
				c.selectedTask.Title,
			)
			c.setMessage("[red]" + err.Error())

			return nil
		}

		c.showStatus(from)

		return nil
	}
}

func (c *Controller) initMoveEvents(events map[tcell.Key]KeyEvent) {
	events[KeyO] = KeyEvent{
		Description: "Move to Open",
		Action:      c.getMoveAction(db.StatusOpen),
	}

	events[KeyC] = KeyEvent{
		Description: "Move to Closed",
		Action:      c.getMoveAction(db.StatusClosed),
	}

	events[KeyD] = KeyEvent{
		Description: "Move to Done",
		Action:      c.getMoveAction(db.StatusDone),
	}

	events[KeyH] = KeyEvent{
		Description: "Move to On Hold",
		Action:      c.getMoveAction(db.StatusOnHold),
	}

	events[KeyA] = KeyEvent{
		Description: "Move to Abandoned",
		Action:      c.getMoveAction(db.StatusAbandoned),
	}
}

func (c *Controller) getRankAction(up bool) func(key *tcell.EventKey) *tcell.EventKey {
	return func(key *tcell.EventKey) *tcell.EventKey {
		if c.selectedTask == nil {
			return nil
		}

		move := c.db.MoveDown
		if up {
			move = c.db.MoveUp
		}

		if err := move(c.ctx, c.selectedTask); err != nil {
			log.Warn().Err(err).Msgf("error while reordering task %s", c.selectedTask.Title)
			c.setMessage("[red]" + err.Error())

			return nil
		}

		c.updateTableSelection(c.selectedStatus.Name, c.selectedTask.Rank)

		return nil
	}
}

func (c *Controller) initBoardEvents(events map[tcell.Key]KeyEvent) {
	events[KeyK] = KeyEvent{
		Description: "Rank Up",
		Action:      c.getRankAction(true),
	}

	events[KeyJ] = KeyEvent{
		Description: "Rank Down",
		Action:      c.getRankAction(false),
	}

	events[KeyN] = KeyEvent{
		Description: "New Task",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.switchToNewTaskForm()

			return nil
		},
	}

	events[KeyX] = KeyEvent{
		Description: "Export",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.export()

			return nil
		},
	}
}

func (c *Controller) initCardEvents(events map[tcell.Key]KeyEvent) {
	events[KeyE] = KeyEvent{
		Description: "Edit Task",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.switchToTaskForm()

			return nil
		},
	}

	events[KeyS] = KeyEvent{
		Description: "Edit Subtasks",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.switchToSubtaskForm()

			return nil
		},
	}

	events[KeySpace] = KeyEvent{
		Description: "Toggle Subtask",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.toggleSelectedSubtask()

			return nil
		},
	}

	events[KeyC] = KeyEvent{
		Description: "Comments",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.toggleComments()

			return nil
		},
	}

	events[tcell.KeyEscape] = KeyEvent{
		Description: "Back",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.closeCard()

			return nil
		},
	}
}

package controller

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

func (c *Controller) getStatusGrid(status string) *tview.Grid {
	header := c.getStatusHeader(status)
	c.statusTables[status] = c.getTable(status)

	grid := tview.NewGrid().SetBorders(true).SetRows(0, 1, 0)

	grid.AddItem(header, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.messageView(), 1, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.statusTables[status], 2, 0, 1, 1, 0, 0, true)

	return grid
}

// getStatusHeader returns the header used for each list of tasks.
// it shows the status at the top, followed by 3 columns listing keyboard shortcuts.
// the first column contains misc shortcuts, the second contains "Show <status>" shortcuts,
// and the third contains "Move to <status>" shortcuts. All three columns are sorted alphabetically.
func (c *Controller) getStatusHeader(status string) *tview.Table {
	table := tview.NewTable().SetBorders(false).SetSelectable(false, false)

	row := 0
	table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("[yellow]%s", status)))
	row++

	shortcuts := map[int][]string{
		0: {},
		1: {},
		2: {},
	}

	for key, event := range c.events {
		text := shortcutText(key, event)

		switch event.Description[:4] {
		case "Show":
			shortcuts[1] = append(shortcuts[1], text)
		case "Move":
			shortcuts[2] = append(shortcuts[2], text)
		default:
			shortcuts[0] = append(shortcuts[0], text)
		}
	}

	for col := 0; col < 3; col++ {
		sort.Strings(shortcuts[col])
	}

	for row-1 < len(shortcuts[0]) || row-1 < len(shortcuts[1]) || row-1 < len(shortcuts[2]) {
		for col := 0; col < 3; col++ {
			if row-1 < len(shortcuts[col]) {
				table.SetCell(row, col, tview.NewTableCell(shortcuts[col][row-1]).SetExpansion(1))
			}
		}

		row++
	}

	table.SetCell(row, 0, tview.NewTableCell("[orange]<Enter>[white] Open Card").SetExpansion(1))

	return table
}

func shortcutText(key tcell.Key, event KeyEvent) string {
	return fmt.Sprintf("[orange]<%s>[white] %s", tcell.KeyNames[key], event.Description)
}

// messageView is a single line shared by the status and card pages for results of actions.
func (c *Controller) messageView() *tview.TextView {
	return c.message
}

func (c *Controller) setMessage(msg string) {
	c.messageView().SetText(msg)
}

func (c *Controller) getTaskForRow(row int) *db.Task {
	// adjust for the header row
	if idx := row - 1; c.selectedStatus != nil && idx < len(c.selectedStatus.Tasks) && idx >= 0 {
		return c.selectedStatus.Tasks[idx]
	}

	return nil
}

// when the row selection changes, update the selected Task.
func (c *Controller) setCurrentRow(row, col int) {
	c.setSelectedTask(row, c.getTaskForRow(row))
}

func (c *Controller) getTable(status string) *tview.Table {
	table := tview.NewTable().SetBorders(false)

	statusContent := &StatusContent{
		status: c.db.Statuses[status],
	}

	table.SetContent(statusContent)

	table.SetSelectable(true, false)
	table.SetFixed(1, 0)

	table.SetSelectionChangedFunc(c.setCurrentRow)
	table.SetSelectedFunc(func(row, col int) {
		if task := c.getTaskForRow(row); task != nil {
			c.showCard(task)
		}
	})

	return table
}

// updateTableSelection updates the selection for the table matching the given status to keep it
// in sync with recently taken actions, e.g. when moving a Task up or down.
func (c *Controller) updateTableSelection(status string, rank int) {
	if c.statusTables[status].GetRowCount() > rank+1 {
		c.statusTables[status].Select(rank+1, 0)
	} else {
		log.Warn().Msgf("couldn't select; rank was too high: %d (row count: %d)", rank, c.statusTables[status].GetRowCount())
	}
}

func (c *Controller) setSelectedTask(row int, task *db.Task) {
	c.selectedTask = task

	title := "nil"
	if task != nil {
		title = task.Title
	}

	name := "nil"
	length := 0

	if c.selectedStatus != nil {
		name = c.selectedStatus.Name
		length = len(c.selectedStatus.Tasks)
	}

	log.Debug().
		Str("selectedStatus", name).
		Int("row", row).
		Int("len", length).
		Msgf("setting selectedTask to '%s'", title)
}

func (c *Controller) showStatus(status string) {
	c.selectedStatus = c.db.Statuses[status]

	c.app.SetInputCapture(c.handleKeys)

	row, _ := c.statusTables[status].GetSelection()

	length := len(c.selectedStatus.Tasks)

	if length > row-1 && row-1 >= 0 {
		c.setSelectedTask(row, c.selectedStatus.Tasks[row-1])
	} else if length > 0 {
		c.setSelectedTask(length, c.selectedStatus.Tasks[length-1])
	} else {
		c.setSelectedTask(-1, nil)
	}

	if c.selectedTask != nil {
		c.updateTableSelection(c.selectedStatus.Name, c.selectedTask.Rank)
	}

	c.pages.SwitchToPage(pageName(status))
}

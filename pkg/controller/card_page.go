package controller

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matt-steen/taskcard/pkg/card"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

func (c *Controller) getCardGrid() *tview.Grid {
	c.cardHeader = tview.NewTextView().SetDynamicColors(true)
	c.cardView = tview.NewTextView().SetDynamicColors(true)
	c.subtaskTable = tview.NewTable().SetBorders(false).SetSelectable(true, false)

	shortcuts := []string{}
	for key, event := range c.cardEvents {
		shortcuts = append(shortcuts, shortcutText(key, event))
	}

	sort.Strings(shortcuts)
	c.cardHeader.SetText(strings.Join(shortcuts, "  "))

	c.subtaskTable.SetSelectionChangedFunc(func(row, col int) {
		c.selectedSubtask = row
	})
	c.subtaskTable.SetSelectedFunc(func(row, col int) {
		c.toggleSelectedSubtask()
	})

	grid := tview.NewGrid().SetBorders(true).SetRows(2, 1, 0, 0)

	grid.AddItem(c.cardHeader, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.messageView(), 1, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.cardView, 2, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.subtaskTable, 3, 0, 1, 1, 0, 0, true)

	return grid
}

// showCard opens a card for the task. The card lives until it is closed again.
func (c *Controller) showCard(task *db.Task) {
	c.setOpenCard(card.NewController(*task, c.db, c.onTaskUpdated, card.WithIndex(task.Rank)))
	c.selectedSubtask = 0
	c.setMessage("")

	c.showCardPage()
}

func (c *Controller) showCardPage() {
	c.renderCard()

	c.app.SetInputCapture(c.handleCardKeys)
	c.pages.SwitchToPage(pageCard)
	c.app.SetFocus(c.subtaskTable)
}

func (c *Controller) closeCard() {
	cc := c.openCard()
	if cc != nil && cc.CommentsOpen() {
		c.closeComments(cc)
	}

	c.setOpenCard(nil)

	if c.selectedStatus == nil {
		c.showStatus(db.StatusOpen)

		return
	}

	c.showStatus(c.selectedStatus.Name)
}

// renderCard redraws the open card from its current state.
func (c *Controller) renderCard() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	task := cc.Task()
	color := card.PriorityColor(task.Priority, task.TopPriority, task.Status == db.StatusDone)

	var b strings.Builder

	fmt.Fprintf(&b, "[%s]▌[white] [::b]%s[::-]", color, tview.Escape(task.Title))

	if task.TopPriority {
		b.WriteString("  [#FFD700]top priority[white]")
	}

	fmt.Fprintf(&b, "\n[yellow]Due:[white] %s", tview.Escape(task.DueDate))
	fmt.Fprintf(&b, "\n[yellow]Priority:[white] %s", task.Priority)
	fmt.Fprintf(&b, "\n[yellow]Assigned:[white] %s", tview.Escape(card.JoinList(task.AssignedTo)))

	if task.RelatedCustomer != "" {
		fmt.Fprintf(&b, "\n[yellow]Customer:[white] %s", tview.Escape(task.RelatedCustomer))
	}

	fmt.Fprintf(&b, "\n[yellow]Tags:[white] %s", tview.Escape(card.JoinList(task.Tags)))

	subtasks := cc.Subtasks()
	if len(subtasks) > 0 {
		fmt.Fprintf(&b, "\n[yellow]Progress:[white] %d%%", cc.Progress())
	}

	c.cardView.SetText(b.String())

	c.subtaskTable.Clear()

	if len(subtasks) == 0 {
		c.subtaskTable.SetCell(0, 0, tview.NewTableCell("No subtasks").SetSelectable(false))

		return
	}

	for row, subtask := range subtasks {
		c.subtaskTable.SetCell(row, 0, subtaskCell(subtask))
	}

	if c.selectedSubtask >= len(subtasks) {
		c.selectedSubtask = len(subtasks) - 1
	}

	c.subtaskTable.Select(c.selectedSubtask, 0)
}

func subtaskCell(subtask db.Subtask) *tview.TableCell {
	if subtask.Completed {
		return tview.NewTableCell("[green]✔[white] [::d]" + tview.Escape(subtask.Text)).SetExpansion(1)
	}

	return tview.NewTableCell("○ " + tview.Escape(subtask.Text)).SetExpansion(1)
}

// toggleSelectedSubtask writes the toggle in the background; the owner callback redraws the
// card once it is stored.
func (c *Controller) toggleSelectedSubtask() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	subtasks := cc.Subtasks()
	if c.selectedSubtask < 0 || c.selectedSubtask >= len(subtasks) {
		return
	}

	id := subtasks[c.selectedSubtask].ID

	go func() {
		if err := cc.ToggleSubtask(c.ctx, id); err != nil {
			c.app.QueueUpdateDraw(func() {
				c.setMessage("[red]" + tview.Escape(err.Error()))
			})
		}
	}()
}

func (c *Controller) toggleComments() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	if !cc.ToggleComments() {
		c.closeComments(cc)

		return
	}

	task := cc.Task()

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Comments for '%s'\n\nNo comments yet.", task.Title)).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			c.closeComments(cc)
		})

	log.Debug().Str("task", string(task.ID)).Msg("opening comments")

	c.app.SetInputCapture(nil)
	c.pages.AddPage(pageComments, modal, false, true)
	c.app.SetFocus(modal)
}

// closeComments is the close callback handed to the comments panel.
func (c *Controller) closeComments(cc *card.Controller) {
	cc.CloseComments()

	if c.pages.HasPage(pageComments) {
		c.pages.RemovePage(pageComments)
	}

	if c.openCard() == cc {
		c.app.SetInputCapture(c.handleCardKeys)
		c.app.SetFocus(c.subtaskTable)
	}
}

package controller

import (
	"fmt"
	"strings"

	"github.com/matt-steen/taskcard/pkg/card"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	labelTitle      = "Title"
	labelDueDate    = "Due Date"
	labelPriority   = "Priority"
	labelAssignedTo = "Assigned To"
	labelCustomer   = "Related Customer"
	labelTags       = "Tags"
	labelText       = "Text"
	labelNew        = "New Subtask"

	titleMax = 80
	fieldMax = 200
)

func priorityOptions() []string {
	options := []string{}
	for _, p := range db.Priorities() {
		options = append(options, string(p))
	}

	return options
}

func priorityIndex(priority db.Priority) int {
	for i, p := range db.Priorities() {
		if p == priority {
			return i
		}
	}

	return -1
}

func (c *Controller) formGrid(name string, form *tview.Form) *tview.Grid {
	c.formHeaderTexts[name] = tview.NewTextView().SetDynamicColors(true)

	grid := tview.NewGrid().SetBorders(true).SetRows(3, 0)

	grid.AddItem(c.formHeaderTexts[name], 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(form, 1, 0, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) setFormHeader(name, title, msg string) {
	text := fmt.Sprintf("[yellow]%s\n[orange]<Esc>[white] Cancel", title)
	if msg != "" {
		text += "\n" + msg
	}

	c.formHeaderTexts[name].SetText(text)
}

func (c *Controller) switchToForm(name string, form *tview.Form) {
	form.SetFocus(0)

	c.pages.SwitchToPage(name)
	c.app.SetInputCapture(c.handleFormKeys)
	c.app.SetFocus(form)
}

// cancelForm discards whatever draft the visible form edits.
func (c *Controller) cancelForm() {
	cc := c.openCard()
	if cc == nil {
		status := db.StatusOpen
		if c.selectedStatus != nil {
			status = c.selectedStatus.Name
		}

		c.showStatus(status)

		return
	}

	switch cc.Mode() {
	case card.EditingTask:
		if err := cc.CancelTaskEdit(); err != nil {
			log.Warn().Err(err).Msg("error cancelling task edit")
		}
	case card.EditingSubtasks:
		if err := cc.CancelSubtaskEdit(); err != nil {
			log.Warn().Err(err).Msg("error cancelling subtask edit")
		}
	case card.Viewing:
	}

	c.showCardPage()
}

func (c *Controller) getTaskFormGrid() *tview.Grid {
	c.taskForm = tview.NewForm().
		AddInputField(labelTitle, "", titleMax, nil, c.fieldChanged(card.FieldTitle)).
		AddInputField(labelDueDate, "", fieldMax, nil, c.fieldChanged(card.FieldDueDate)).
		AddDropDown(labelPriority, priorityOptions(), -1, func(option string, index int) {
			c.fieldChanged(card.FieldPriority)(option)
		}).
		AddInputField(labelAssignedTo, "", fieldMax, nil, c.fieldChanged(card.FieldAssignedTo)).
		AddInputField(labelCustomer, "", fieldMax, nil, c.fieldChanged(card.FieldRelatedCustomer)).
		AddInputField(labelTags, "", fieldMax, nil, c.fieldChanged(card.FieldTags))

	c.taskForm.AddButton("Save", c.saveTaskForm)
	c.taskForm.AddButton("Cancel", c.cancelForm)

	return c.formGrid(pageTaskForm, c.taskForm)
}

func (c *Controller) fieldChanged(field card.Field) func(text string) {
	return func(text string) {
		cc := c.openCard()
		if cc == nil || cc.Mode() != card.EditingTask {
			return
		}

		if err := cc.SetField(field, text); err != nil {
			log.Debug().Err(err).Msg("ignoring field change")
		}
	}
}

func (c *Controller) inputField(form *tview.Form, label string) *tview.InputField {
	field, _ := form.GetFormItemByLabel(label).(*tview.InputField)

	return field
}

func (c *Controller) switchToTaskForm() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	if err := cc.BeginTaskEdit(); err != nil {
		c.setMessage("[red]" + tview.Escape(err.Error()))

		return
	}

	draft, _ := cc.TaskDraft()

	c.inputField(c.taskForm, labelTitle).SetText(draft.Title)
	c.inputField(c.taskForm, labelDueDate).SetText(draft.DueDate)
	c.inputField(c.taskForm, labelAssignedTo).SetText(draft.AssignedTo)
	c.inputField(c.taskForm, labelCustomer).SetText(draft.RelatedCustomer)
	c.inputField(c.taskForm, labelTags).SetText(draft.Tags)

	if dropDown, ok := c.taskForm.GetFormItemByLabel(labelPriority).(*tview.DropDown); ok {
		dropDown.SetCurrentOption(priorityIndex(draft.Priority))
	}

	c.setFormHeader(pageTaskForm, fmt.Sprintf("Edit '%s'", draft.Title), "")
	c.switchToForm(pageTaskForm, c.taskForm)
}

// saveTaskForm commits the draft on the card; as the owner, the board then persists the fields.
func (c *Controller) saveTaskForm() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	updated, err := cc.SaveTaskEdit()
	if err != nil {
		c.setFormHeader(pageTaskForm, "Edit Task", "[red]"+tview.Escape(err.Error()))

		return
	}

	go c.persistFields(updated)

	c.showCardPage()
}

func (c *Controller) persistFields(task db.Task) {
	patch := db.Patch{
		Title:           &task.Title,
		DueDate:         &task.DueDate,
		Priority:        &task.Priority,
		AssignedTo:      &task.AssignedTo,
		RelatedCustomer: &task.RelatedCustomer,
		Tags:            &task.Tags,
		UpdatedAt:       task.UpdatedAt,
	}

	if err := c.db.Update(c.ctx, task.ID, patch); err != nil {
		log.Warn().Err(err).Str("task", string(task.ID)).Msg("error saving task fields")

		c.app.QueueUpdateDraw(func() {
			c.setMessage("[red]" + tview.Escape(err.Error()))
		})
	}
}

func (c *Controller) getSubtaskGrid() *tview.Grid {
	c.subtaskDraft = tview.NewTable().SetBorders(false).SetSelectable(true, false)
	c.subtaskDraft.SetSelectionChangedFunc(func(row, col int) {
		c.selectDraft(row)
	})

	c.subtaskForm = tview.NewForm().
		AddInputField(labelText, "", fieldMax, nil, c.draftTextChanged).
		AddInputField(labelNew, "", fieldMax, nil, nil)

	c.subtaskText = c.inputField(c.subtaskForm, labelText)
	c.newSubtaskText = c.inputField(c.subtaskForm, labelNew)

	c.subtaskForm.AddButton("Add", c.addDraftSubtask)
	c.subtaskForm.AddButton("Up", func() { c.moveDraft(true) })
	c.subtaskForm.AddButton("Down", func() { c.moveDraft(false) })
	c.subtaskForm.AddButton("Remove", c.removeDraftSubtask)
	c.subtaskForm.AddButton("Save", c.saveSubtaskForm)
	c.subtaskForm.AddButton("Cancel", c.cancelForm)

	c.formHeaderTexts[pageSubtasks] = tview.NewTextView().SetDynamicColors(true)

	grid := tview.NewGrid().SetBorders(true).SetRows(3, 0, 0)

	grid.AddItem(c.formHeaderTexts[pageSubtasks], 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.subtaskDraft, 1, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.subtaskForm, 2, 0, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) switchToSubtaskForm() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	if err := cc.BeginSubtaskEdit(); err != nil {
		c.setMessage("[red]" + tview.Escape(err.Error()))

		return
	}

	c.newSubtaskText.SetText("")
	c.setFormHeader(pageSubtasks, fmt.Sprintf("Edit subtasks of '%s'", cc.Task().Title), "")
	c.renderDraft(0)
	c.switchToForm(pageSubtasks, c.subtaskForm)
}

// renderDraft redraws the draft buffer and selects the given row.
func (c *Controller) renderDraft(selected int) {
	cc := c.openCard()
	if cc == nil {
		return
	}

	subtasks := cc.Subtasks()

	c.subtaskDraft.Clear()

	for row, subtask := range subtasks {
		c.subtaskDraft.SetCell(row, 0, subtaskCell(subtask))
	}

	if len(subtasks) == 0 {
		c.selectedDraft = -1
		c.subtaskText.SetText("")

		return
	}

	if selected >= len(subtasks) {
		selected = len(subtasks) - 1
	}

	if selected < 0 {
		selected = 0
	}

	c.subtaskDraft.Select(selected, 0)
	c.selectDraft(selected)
}

func (c *Controller) selectDraft(row int) {
	cc := c.openCard()
	if cc == nil {
		return
	}

	subtasks := cc.Subtasks()
	if row < 0 || row >= len(subtasks) {
		return
	}

	c.selectedDraft = row
	c.subtaskText.SetText(subtasks[row].Text)
}

func (c *Controller) selectedDraftID() (string, bool) {
	cc := c.openCard()
	if cc == nil {
		return "", false
	}

	subtasks := cc.Subtasks()
	if c.selectedDraft < 0 || c.selectedDraft >= len(subtasks) {
		return "", false
	}

	return subtasks[c.selectedDraft].ID, true
}

func (c *Controller) draftTextChanged(text string) {
	cc := c.openCard()
	if cc == nil || cc.Mode() != card.EditingSubtasks {
		return
	}

	id, ok := c.selectedDraftID()
	if !ok {
		return
	}

	if err := cc.EditSubtaskText(id, text); err != nil {
		log.Debug().Err(err).Msg("ignoring subtask text change")

		return
	}

	c.subtaskDraft.SetCell(c.selectedDraft, 0, subtaskCell(cc.Subtasks()[c.selectedDraft]))
}

func (c *Controller) addDraftSubtask() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	added, err := cc.AddSubtask(c.newSubtaskText.GetText())
	if err != nil {
		log.Warn().Err(err).Msg("error adding subtask")

		return
	}

	if !added {
		return
	}

	c.newSubtaskText.SetText("")
	c.renderDraft(len(cc.Subtasks()) - 1)
}

func (c *Controller) moveDraft(up bool) {
	cc := c.openCard()
	if cc == nil || c.selectedDraft < 0 {
		return
	}

	selected := c.selectedDraft

	var err error

	if up {
		err = cc.MoveSubtaskUp(selected)
		if selected > 0 {
			selected--
		}
	} else {
		err = cc.MoveSubtaskDown(selected)
		if selected < len(cc.Subtasks())-1 {
			selected++
		}
	}

	if err != nil {
		log.Warn().Err(err).Msg("error moving subtask")

		return
	}

	c.renderDraft(selected)
}

func (c *Controller) removeDraftSubtask() {
	cc := c.openCard()
	if cc == nil {
		return
	}

	id, ok := c.selectedDraftID()
	if !ok {
		return
	}

	if err := cc.RemoveSubtask(id); err != nil {
		log.Warn().Err(err).Msg("error removing subtask")

		return
	}

	c.renderDraft(c.selectedDraft)
}

// beginSubtaskSave reports whether a subtask save may start; only one runs at a time.
func (c *Controller) beginSubtaskSave() bool {
	if c.savingSubtasks {
		return false
	}

	c.savingSubtasks = true

	return true
}

func (c *Controller) endSubtaskSave() {
	c.savingSubtasks = false
}

// saveSubtaskForm writes the draft in the background. The form stays open with the draft
// intact when the write fails. Save is ignored while a write is pending.
func (c *Controller) saveSubtaskForm() {
	cc := c.openCard()
	if cc == nil || !c.beginSubtaskSave() {
		return
	}

	c.setFormHeader(pageSubtasks, "Saving subtasks...", "")

	go func() {
		err := cc.SaveSubtasks(c.ctx)

		c.app.QueueUpdateDraw(func() {
			c.endSubtaskSave()

			if c.openCard() != cc {
				return
			}

			if err != nil {
				c.setFormHeader(pageSubtasks, "Edit subtasks", "[red]"+tview.Escape(err.Error()))

				return
			}

			c.showCardPage()
		})
	}()
}

func (c *Controller) getNewTaskGrid() *tview.Grid {
	c.newTaskForm = tview.NewForm().
		AddInputField(labelTitle, "", titleMax, nil, nil).
		AddDropDown(labelPriority, priorityOptions(), priorityIndex(db.PriorityMedium), nil)

	c.newTaskForm.AddButton("Save", c.saveNewTask)
	c.newTaskForm.AddButton("Cancel", c.cancelForm)

	return c.formGrid(pageNewTask, c.newTaskForm)
}

func (c *Controller) switchToNewTaskForm() {
	c.inputField(c.newTaskForm, labelTitle).SetText("")
	c.setFormHeader(pageNewTask, "New Task", "")
	c.switchToForm(pageNewTask, c.newTaskForm)
}

func (c *Controller) saveNewTask() {
	title := strings.TrimSpace(c.inputField(c.newTaskForm, labelTitle).GetText())
	if title == "" {
		c.setFormHeader(pageNewTask, "New Task", "[red]a title is required")

		return
	}

	priority := db.PriorityMedium
	if dropDown, ok := c.newTaskForm.GetFormItemByLabel(labelPriority).(*tview.DropDown); ok {
		if _, option := dropDown.GetCurrentOption(); option != "" {
			priority = db.Priority(option)
		}
	}

	log.Debug().Msgf("saving task with title '%s'", title)

	task, err := c.db.NewTask(c.ctx, title, priority)
	if err != nil {
		log.Err(err).Msg("error saving the new task")
		c.setFormHeader(pageNewTask, "New Task", "[red]"+tview.Escape(err.Error()))

		return
	}

	// select the new task and return to the open list
	c.showStatus(db.StatusOpen)
	c.updateTableSelection(db.StatusOpen, task.Rank)
	c.setSelectedTask(task.Rank+1, task)
}

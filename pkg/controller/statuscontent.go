package controller

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskcard/pkg/card"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/rivo/tview"
)

// StatusContent implements tview.TableContent, which tview.Table uses to update data.
type StatusContent struct {
	tview.TableContentReadOnly
	status *db.Status
}

func headerCell(text string, expansion int) *tview.TableCell {
	return tview.NewTableCell(text).SetExpansion(expansion).
		SetTextColor(tcell.ColorYellow).SetSelectable(false)
}

// GetCell returns the cell at the given position or nil if no cell.
func (s *StatusContent) GetCell(row, col int) *tview.TableCell {
	if row == 0 {
		switch col {
		case 0:
			return headerCell("title", titleRatio)
		case 1:
			return headerCell("due", 1)
		case 2:
			return headerCell("priority", 1)
		case 3:
			return headerCell("assigned", 1)
		case 4:
			return headerCell("progress", 1)
		}
	}

	if s.status == nil || row-1 >= len(s.status.Tasks) {
		return nil
	}

	task := s.status.Tasks[row-1]

	switch col {
	case 0:
		return tview.NewTableCell(task.Title).SetExpansion(titleRatio).SetReference(task)
	case 1:
		return tview.NewTableCell(task.DueDate).SetExpansion(1)
	case 2:
		color := card.PriorityColor(task.Priority, task.TopPriority, s.status.Name == db.StatusDone)

		return tview.NewTableCell(string(task.Priority)).SetExpansion(1).SetTextColor(tcell.GetColor(color))
	case 3:
		return tview.NewTableCell(strings.Join(task.AssignedTo, ", ")).SetExpansion(1)
	case 4:
		if len(task.Subtasks) == 0 {
			return tview.NewTableCell("-").SetExpansion(1)
		}

		return tview.NewTableCell(fmt.Sprintf("%d%%", card.Progress(task.Subtasks))).SetExpansion(1)
	}

	return nil
}

// GetRowCount returns the number of rows in the table.
func (s *StatusContent) GetRowCount() int {
	if s.status != nil {
		return len(s.status.Tasks) + 1
	}

	return 1
}

// GetColumnCount returns the number of columns in the table.
func (s *StatusContent) GetColumnCount() int {
	return 5
}

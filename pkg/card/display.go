package card

import "github.com/matt-steen/taskcard/pkg/db"

// PriorityColor returns the accent color of a card. Cards in the completed column are always
// green; top priority wins over the priority value.
func PriorityColor(priority db.Priority, topPriority, completedColumn bool) string {
	switch {
	case completedColumn:
		return "#32CD32"
	case topPriority:
		return "#FFD700"
	}

	switch priority {
	case db.PriorityHigh:
		return "#FF4500"
	case db.PriorityMedium:
		return "#FFA500"
	case db.PriorityLow:
		return "#32CD32"
	}

	return "#CCCCCC"
}

package card

// Mode is the editing surface currently active on a card. Exactly one mode is active at a time.
type Mode int

// These constants are the card modes. A card starts out Viewing.
const (
	Viewing Mode = iota
	EditingTask
	EditingSubtasks
)

func (m Mode) String() string {
	switch m {
	case Viewing:
		return "viewing"
	case EditingTask:
		return "editing task"
	case EditingSubtasks:
		return "editing subtasks"
	}

	return "unknown"
}

package card_test

import (
	"sort"
	"testing"

	"github.com/matt-steen/taskcard/pkg/card"
	"github.com/matt-steen/taskcard/pkg/db"
	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"":                       {},
		" , ,":                   {},
		"ann":                    {"ann"},
		" ann ,bo,, cy  ":        {"ann", "bo", "cy"},
		"urgent, client, urgent": {"urgent", "client"},
	}

	for input, want := range cases {
		assert.Equal(t, want, card.SplitList(input), "input %q", input)
	}
}

func TestSplitListRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "a", " a , b ,, c", ",,x,,", "one two, three"}

	for _, input := range inputs {
		first := card.SplitList(input)
		second := card.SplitList(card.JoinList(first))

		sort.Strings(first)
		sort.Strings(second)
		assert.Equal(t, first, second, "input %q", input)
	}
}

func TestTaskFieldEditor(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	task := sampleTask()
	editor := card.NewTaskFieldEditor(task)

	assert.Equal(card.TaskDraft{
		Title:           "quarterly report",
		DueDate:         "2024-06-01",
		Priority:        db.PriorityMedium,
		AssignedTo:      "ann, bo",
		RelatedCustomer: "acme",
		Tags:            "finance",
	}, editor.Draft())

	assert.Nil(editor.Set(card.FieldDueDate, "2024-07-01"))
	assert.Nil(editor.Set(card.FieldRelatedCustomer, ""))
	assert.Nil(editor.Set(card.FieldTags, "finance, q3 "))
	assert.ErrorIs(editor.Set(card.Field(42), "x"), card.ErrUnknownField)
	assert.ErrorIs(editor.Set(card.FieldPriority, "high"), db.ErrInvalidPriority)

	committed := editor.Commit(task)
	assert.Equal("2024-07-01", committed.DueDate)
	assert.Equal("", committed.RelatedCustomer)
	assert.Equal([]string{"finance", "q3"}, committed.Tags)
	assert.Equal(db.PriorityMedium, committed.Priority)
	assert.Equal(task.Subtasks, committed.Subtasks)

	// the source task is not modified
	assert.Equal([]string{"finance"}, task.Tags)
}

func TestPriorityColor(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	assert.Equal("#32CD32", card.PriorityColor(db.PriorityHigh, true, true))
	assert.Equal("#FFD700", card.PriorityColor(db.PriorityLow, true, false))
	assert.Equal("#FF4500", card.PriorityColor(db.PriorityHigh, false, false))
	assert.Equal("#FFA500", card.PriorityColor(db.PriorityMedium, false, false))
	assert.Equal("#32CD32", card.PriorityColor(db.PriorityLow, false, false))
	assert.Equal("#CCCCCC", card.PriorityColor("", false, false))
}

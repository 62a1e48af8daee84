package controller

import "github.com/gdamore/tcell/v2"

// tcell reports every printable character as KeyRune; runes used as shortcuts get a Key of
// their own above the range tcell uses so they can share the event maps with special keys.
const keyOffset = 1024

// These constants are the rune shortcuts.
const (
	KeyA      tcell.Key = keyOffset + 'a'
	KeyC      tcell.Key = keyOffset + 'c'
	KeyD      tcell.Key = keyOffset + 'd'
	KeyE      tcell.Key = keyOffset + 'e'
	KeyH      tcell.Key = keyOffset + 'h'
	KeyJ      tcell.Key = keyOffset + 'j'
	KeyK      tcell.Key = keyOffset + 'k'
	KeyN      tcell.Key = keyOffset + 'n'
	KeyO      tcell.Key = keyOffset + 'o'
	KeyQ      tcell.Key = keyOffset + 'q'
	KeyS      tcell.Key = keyOffset + 's'
	KeyX      tcell.Key = keyOffset + 'x'
	KeyShiftA tcell.Key = keyOffset + 'A'
	KeyShiftC tcell.Key = keyOffset + 'C'
	KeyShiftD tcell.Key = keyOffset + 'D'
	KeyShiftH tcell.Key = keyOffset + 'H'
	KeyShiftO tcell.Key = keyOffset + 'O'
	KeySpace  tcell.Key = keyOffset + ' '
)

func initKeys() {
	for _, r := range "acdehjknoqsxACDHO" {
		tcell.KeyNames[keyOffset+tcell.Key(r)] = string(r)
	}

	tcell.KeyNames[KeySpace] = "Space"
}

// AsKey maps rune events to the shortcut keys above; other events keep their tcell key.
func AsKey(evt *tcell.EventKey) tcell.Key {
	if evt.Key() == tcell.KeyRune && evt.Rune() < 128 {
		return keyOffset + tcell.Key(evt.Rune())
	}

	return evt.Key()
}

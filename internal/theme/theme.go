package theme

import (
	"fmt"
	"strings"
	"sync"
)

// Mode is the display mode shared by every screen.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// Palette is the icon set the bot renders with.
type Palette struct {
	Mode        Mode
	BarFilled   string
	BarEmpty    string
	Accent      string
	Done        string
	Open        string
	CategoryTag string
}

var palettes = map[Mode]Palette{
	Light: {Mode: Light, BarFilled: "🟩", BarEmpty: "⬜", Accent: "🧭", Done: "✅", Open: "⬜", CategoryTag: "🏷️"},
	Dark:  {Mode: Dark, BarFilled: "🟨", BarEmpty: "⬛", Accent: "🌙", Done: "☑️", Open: "▫️", CategoryTag: "🔖"},
}

// Settings holds the process-wide mode. Toggle is the only way to change it.
type Settings struct {
	mu   sync.RWMutex
	mode Mode
}

// ParseMode accepts "light" or "dark" in any case.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case Light, "":
		return Light, nil
	case Dark:
		return Dark, nil
	default:
		return "", fmt.Errorf("unknown theme mode %q", raw)
	}
}

func NewSettings(mode Mode) *Settings {
	if _, ok := palettes[mode]; !ok {
		mode = Light
	}
	return &Settings{mode: mode}
}

func (s *Settings) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Toggle flips between light and dark and returns the new mode.
func (s *Settings) Toggle() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == Dark {
		s.mode = Light
	} else {
		s.mode = Dark
	}
	return s.mode
}

func (s *Settings) Palette() Palette {
	return palettes[s.Mode()]
}

// ProgressBar renders ratio as width cells.
func (p Palette) ProgressBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio*float64(width) + 0.5)
	return strings.Repeat(p.BarFilled, filled) + strings.Repeat(p.BarEmpty, width-filled)
}

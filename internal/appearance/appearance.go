// Package appearance holds the reader's typography and colour settings.
//
// State is an explicit object handed to whoever renders books. Changes are
// published to subscribers, which lets a reading session re-style itself
// whenever the settings change.
package appearance

import (
	"math"
	"sync"

	"github.com/mrlokans/epubreader/internal/validation"
)

// Theme is a named colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeSepia Theme = "sepia"
)

// Bounds of the adjustable settings.
const (
	MinFontSize  = 50
	MaxFontSize  = 200
	FontSizeStep = 10

	MinLineHeight  = 1.0
	MaxLineHeight  = 3.0
	LineHeightStep = 0.1
)

// Settings is one complete appearance configuration.
type Settings struct {
	// FontSize is a percentage of the book's base size.
	FontSize   int     `json:"font_size" validate:"gte=50,lte=200"`
	FontFamily string  `json:"font_family" validate:"required"`
	LineHeight float64 `json:"line_height" validate:"gte=1,lte=3"`
	Theme      Theme   `json:"theme" validate:"oneof=light dark sepia"`
}

// Defaults returns the settings used before the user changes anything.
func Defaults() Settings {
	return Settings{
		FontSize:   100,
		FontFamily: "Inter",
		LineHeight: 1.5,
		Theme:      ThemeLight,
	}
}

// Validate checks s against the allowed ranges.
func (s Settings) Validate() error {
	return validation.Struct(s)
}

// normalize clamps numeric settings into range and snaps them to their step.
func (s Settings) normalize() Settings {
	s.FontSize = clampInt(roundToStep(s.FontSize, FontSizeStep), MinFontSize, MaxFontSize)
	s.LineHeight = math.Max(MinLineHeight, math.Min(MaxLineHeight, roundTenth(s.LineHeight)))
	if s.FontFamily == "" {
		s.FontFamily = Defaults().FontFamily
	}
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSepia:
	default:
		s.Theme = ThemeLight
	}
	return s
}

func roundToStep(v, step int) int {
	return int(math.Round(float64(v)/float64(step))) * step
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// State is a concurrency-safe holder of the current Settings.
type State struct {
	mu       sync.RWMutex
	settings Settings
	subs     map[int]chan Settings
	nextID   int
}

// NewState creates a state starting from initial, normalized into range.
func NewState(initial Settings) *State {
	return &State{
		settings: initial.normalize(),
		subs:     make(map[int]chan Settings),
	}
}

// Get returns the current settings.
func (s *State) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Set replaces all settings. Out-of-range values are rejected.
func (s *State) Set(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.Update(func(cur *Settings) { *cur = settings })
	return nil
}

// Update applies fn to a copy of the settings, normalizes the result and
// publishes it if anything changed. It returns the resulting settings.
func (s *State) Update(fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	next = next.normalize()
	if next == s.settings {
		return next
	}
	s.settings = next
	for _, ch := range s.subs {
		publish(ch, next)
	}
	return next
}

// publish delivers the latest settings without blocking; a slow subscriber
// only ever sees the newest value.
func publish(ch chan Settings, v Settings) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Subscribe returns a channel receiving settings after every change and a
// function that ends the subscription and closes the channel.
func (s *State) Subscribe() (<-chan Settings, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Settings, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *State) SetFontSize(size int) Settings {
	return s.Update(func(cur *Settings) { cur.FontSize = size })
}

func (s *State) IncreaseFontSize() Settings {
	return s.Update(func(cur *Settings) { cur.FontSize += FontSizeStep })
}

func (s *State) DecreaseFontSize() Settings {
	return s.Update(func(cur *Settings) { cur.FontSize -= FontSizeStep })
}

func (s *State) SetLineHeight(height float64) Settings {
	return s.Update(func(cur *Settings) { cur.LineHeight = height })
}

func (s *State) IncreaseLineHeight() Settings {
	return s.Update(func(cur *Settings) { cur.LineHeight += LineHeightStep })
}

func (s *State) DecreaseLineHeight() Settings {
	return s.Update(func(cur *Settings) { cur.LineHeight -= LineHeightStep })
}

func (s *State) SetFontFamily(family string) Settings {
	return s.Update(func(cur *Settings) { cur.FontFamily = family })
}

// SetTheme switches the colour scheme. Unknown themes are rejected.
func (s *State) SetTheme(theme Theme) (Settings, error) {
	if !theme.Valid() {
		return s.Get(), &validation.Error{Fields: map[string]string{"theme": "must be one of: light dark sepia"}}
	}
	return s.Update(func(cur *Settings) { cur.Theme = theme }), nil
}

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSepia:
		return true
	}
	return false
}

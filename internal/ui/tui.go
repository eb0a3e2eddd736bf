// ABOUTME: Console initialization and control channels
// ABOUTME: Wraps the bubbletea program and carries key-driven control changes
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ControlKind identifies what a ControlChange adjusts
type ControlKind int

const (
	GainChange ControlKind = iota
	PanChange
	SeparationChange
	SpeedChange
	Seek
	TogglePlayback
	ToggleLoop
	ToggleEffects
	ToggleEffect
	SwapChannels
	InvertPolarity
)

// ControlChange is emitted for every key that adjusts playback. Value holds
// the new level for float controls and the offset in seconds for Seek;
// Index selects the effect for ToggleEffect.
type ControlChange struct {
	Kind  ControlKind
	Value float32
	Index int
}

// Controls carries console input to the application
type Controls struct {
	Changes chan ControlChange
	Quit    chan struct{}
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan ControlChange, 16),
		Quit:    make(chan struct{}, 1),
	}
}

// send never blocks; a full queue drops the change
func (c *Controls) send(change ControlChange) {
	if c == nil {
		return
	}
	select {
	case c.Changes <- change:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a console model. initial seeds the mixer display.
func NewModel(controls *Controls, initial MixerState) Model {
	m := Model{controls: controls}
	m.applyStatus(StatusMsg{Mixer: &initial})
	return m
}

// Run creates the console program; the caller runs it
func Run(controls *Controls, initial MixerState) *tea.Program {
	return tea.NewProgram(NewModel(controls, initial), tea.WithAltScreen())
}

// ABOUTME: Bubbletea model for the mixer console
// ABOUTME: Renders playback and mixer state; keys become ControlChange messages
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// EffectState is one entry of the effect chain as shown in the console
type EffectState struct {
	Name    string
	Enabled bool
}

// Model represents the console state
type Model struct {
	// Output
	backend      string
	port         string
	format       string
	sourceFormat string
	clients      []string

	// Source
	title    string
	artist   string
	position time.Duration
	duration time.Duration
	playing  bool
	looping  bool

	// Mixer
	gain           float32
	pan            float32
	separation     float32
	speed          float32
	effectsEnabled bool
	swapped        bool
	inverted       bool
	effects        []EffectState

	// Stats
	underruns int64
	lastError string

	showDebug bool
	controls  *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}
	return m, nil
}

// View renders the console
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderSource())
	b.WriteString(m.renderMixer())
	b.WriteString(m.renderEffects())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	out := m.backend
	if m.port != "" {
		out += " / " + m.port
	}
	if out == "" {
		out = "(no output)"
	}
	s := fmt.Sprintf(`┌─ audiograph ─────────────────────────────────────────┐
│ Output: %-45s │
│ Format: %-45s │
`, truncate(out, 45), truncate(m.format, 45))
	if m.sourceFormat != "" && m.sourceFormat != m.format {
		s += fmt.Sprintf("│ Render: %-45s │\n", truncate(m.sourceFormat, 45))
	}
	if len(m.clients) > 0 {
		s += fmt.Sprintf("│ Listeners: %-42s │\n", truncate(strings.Join(m.clients, ", "), 42))
	}
	return s + "├──────────────────────────────────────────────────────┤\n"
}

func (m Model) renderSource() string {
	if m.title == "" {
		return "│ No source                                            │\n"
	}
	state := "⏸"
	if m.playing {
		state = "▶"
	}
	loop := ""
	if m.looping {
		loop = " ⟳"
	}

	s := fmt.Sprintf("│ %s %-49s │\n", state, truncate(m.title+loop, 49))
	if m.artist != "" {
		s += fmt.Sprintf("│   %-50s │\n", truncate(m.artist, 50))
	}
	if m.duration > 0 {
		s += fmt.Sprintf("│   [%s] %s / %-8s │\n",
			renderBar(float64(m.position), float64(m.duration), 24),
			formatDuration(m.position), formatDuration(m.duration))
	} else {
		s += fmt.Sprintf("│   %-50s │\n", formatDuration(m.position))
	}
	return s
}

func (m Model) renderMixer() string {
	flags := []string{}
	if m.swapped {
		flags = append(flags, "swapped")
	}
	if m.inverted {
		flags = append(flags, "inverted")
	}
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Gain:       [%s] %4.2f%-18s │
│ Pan:        %+5.2f   Separation: %+5.2f%-13s │
│ Speed:      %5.2fx  %-32s │
`,
		renderBar(float64(m.gain), 2, 10), m.gain, "",
		m.pan, m.separation, "",
		m.speed, strings.Join(flags, ", "))
}

func (m Model) renderEffects() string {
	state := "on"
	if !m.effectsEnabled {
		state = "bypassed"
	}
	s := fmt.Sprintf("│ Effects (%s):%-*s │\n", state, 40-len(state), "")
	if len(m.effects) == 0 {
		s += "│   (none)                                             │\n"
	}
	for i, e := range m.effects {
		mark := "✗"
		if e.Enabled {
			mark = "✓"
		}
		s += fmt.Sprintf("│   %d %s %-46s │\n", i+1, mark, truncate(e.Name, 46))
	}
	return s
}

func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Underruns: %-40d │
│   Last error: %-39s │
`, m.underruns, truncate(m.lastError, 39))
}

func (m Model) renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ ↑/↓:Gain ←/→:Pan [/]:Width -/+:Speed ,/.:Seek        │
│ space:Play l:Loop e:Effects 1-9:Effect x:Swap i:Inv  │
│ d:Debug q:Quit                                       │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "up":
		m.gain = clamp(m.gain+0.05, 0, 2)
		m.controls.send(ControlChange{Kind: GainChange, Value: m.gain})
	case "down":
		m.gain = clamp(m.gain-0.05, 0, 2)
		m.controls.send(ControlChange{Kind: GainChange, Value: m.gain})
	case "left":
		m.pan = clamp(m.pan-0.1, -1, 1)
		m.controls.send(ControlChange{Kind: PanChange, Value: m.pan})
	case "right":
		m.pan = clamp(m.pan+0.1, -1, 1)
		m.controls.send(ControlChange{Kind: PanChange, Value: m.pan})
	case "[":
		m.separation = clamp(m.separation-0.1, -1, 1)
		m.controls.send(ControlChange{Kind: SeparationChange, Value: m.separation})
	case "]":
		m.separation = clamp(m.separation+0.1, -1, 1)
		m.controls.send(ControlChange{Kind: SeparationChange, Value: m.separation})
	case "-":
		m.speed = clamp(m.speed-0.1, 0.1, 4)
		m.controls.send(ControlChange{Kind: SpeedChange, Value: m.speed})
	case "+", "=":
		m.speed = clamp(m.speed+0.1, 0.1, 4)
		m.controls.send(ControlChange{Kind: SpeedChange, Value: m.speed})
	case ",":
		m.controls.send(ControlChange{Kind: Seek, Value: -5})
	case ".":
		m.controls.send(ControlChange{Kind: Seek, Value: 5})
	case " ":
		m.playing = !m.playing
		m.controls.send(ControlChange{Kind: TogglePlayback})
	case "l":
		m.looping = !m.looping
		m.controls.send(ControlChange{Kind: ToggleLoop})
	case "e":
		m.effectsEnabled = !m.effectsEnabled
		m.controls.send(ControlChange{Kind: ToggleEffects})
	case "x":
		m.swapped = !m.swapped
		m.controls.send(ControlChange{Kind: SwapChannels})
	case "i":
		m.inverted = !m.inverted
		m.controls.send(ControlChange{Kind: InvertPolarity})
	case "d":
		m.showDebug = !m.showDebug
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			idx := int(key[0] - '1')
			if idx < len(m.effects) {
				m.effects[idx].Enabled = !m.effects[idx].Enabled
				m.controls.send(ControlChange{Kind: ToggleEffect, Index: idx})
			}
		}
	}
	return m, nil
}

// applyStatus updates the model from a status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Backend != "" {
		m.backend = msg.Backend
		m.port = msg.Port
	}
	if msg.Format != "" {
		m.format = msg.Format
		m.sourceFormat = msg.SourceFormat
	}
	if msg.Title != "" {
		m.title = msg.Title
		m.artist = msg.Artist
		m.duration = msg.Duration
	}
	if msg.Clients != nil {
		m.clients = msg.Clients
	}
	if msg.Position != nil {
		m.position = *msg.Position
	}
	if msg.Playing != nil {
		m.playing = *msg.Playing
	}
	if msg.Looping != nil {
		m.looping = *msg.Looping
	}
	if msg.Mixer != nil {
		mx := msg.Mixer
		m.gain = mx.Gain
		m.pan = mx.Pan
		m.separation = mx.Separation
		m.speed = mx.Speed
		m.effectsEnabled = mx.EffectsEnabled
		m.swapped = mx.Swapped
		m.inverted = mx.Inverted
		m.effects = append([]EffectState(nil), mx.Effects...)
	}
	if msg.Underruns != 0 {
		m.underruns = msg.Underruns
	}
	if msg.Error != "" {
		m.lastError = msg.Error
	}
}

// MixerState mirrors the mixer controls
type MixerState struct {
	Gain           float32
	Pan            float32
	Separation     float32
	Speed          float32
	EffectsEnabled bool
	Swapped        bool
	Inverted       bool
	Effects        []EffectState
}

// StatusMsg updates console state. Empty and nil fields leave the current
// value unchanged.
type StatusMsg struct {
	Backend      string
	Port         string
	Format       string
	SourceFormat string
	Clients      []string

	Title    string
	Artist   string
	Duration time.Duration
	Position *time.Duration
	Playing  *bool
	Looping  *bool

	Mixer     *MixerState
	Underruns int64
	Error     string
}

// Utility functions
func renderBar(value, max float64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(value * float64(width) / max)
	}
	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteString("█")
		} else {
			b.WriteString("░")
		}
	}
	return b.String()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

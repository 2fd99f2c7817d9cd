// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/cn105/pkg/cn105"
	"github.com/Thermoquad/cn105/pkg/heatpump"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	refreshInterval = time.Second
	maxLogEntries   = 100
)

// Setting rows, top to bottom
const (
	rowPower = iota
	rowMode
	rowTemp
	rowFan
	rowVane
	rowWideVane
	rowCount
)

var rowLabels = [rowCount]string{
	rowPower:    "Power",
	rowMode:     "Mode",
	rowTemp:     "Temperature",
	rowFan:      "Fan",
	rowVane:     "Vane",
	rowWideVane: "Wide Vane",
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlDevice runs functions against the engine on its owning goroutine
type controlDevice interface {
	Do(ctx context.Context, fn func(*heatpump.Engine) error) error
}

// controlSnapshot is a copy of the engine state taken inside Do
type controlSnapshot struct {
	current   cn105.Settings
	wanted    cn105.Settings
	status    cn105.Status
	connected bool
	state     heatpump.State
	baudRate  int
	extended  bool
	stats     cn105.Statistics
}

func snapshotOf(e *heatpump.Engine) controlSnapshot {
	return controlSnapshot{
		current:   e.Settings(),
		wanted:    e.WantedSettings(),
		status:    e.Status(),
		connected: e.Connected(),
		state:     e.State(),
		baudRate:  e.BaudRate(),
		extended:  e.ExtendedTemperature(),
		stats:     *e.Statistics(),
	}
}

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctx      context.Context
	device   controlDevice
	connInfo string

	snap    controlSnapshot
	hasSnap bool

	// Local edit of the wanted settings, sent on enter
	edit    cn105.Settings
	editing bool
	sending bool

	row       int
	tempInput textinput.Model

	eventLog []logEntry

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type snapshotMsg struct {
	snap controlSnapshot
	err  error
}

type updateResultMsg struct {
	settings cn105.Settings
	sent     bool
	err      error
}

type refreshResultMsg struct {
	err error
}

type controlEventMsg struct {
	text    string
	isError bool
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctx context.Context, device controlDevice, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "21.5"
	ti.CharLimit = 5
	ti.Width = 6

	return controlModel{
		ctx:       ctx,
		device:    device,
		connInfo:  connInfo,
		edit:      cn105.DefaultSettings(),
		tempInput: ti,
		width:     80,
		height:    24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(m.fetchSnapshot(), controlTickCmd())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		return m, tea.Batch(m.fetchSnapshot(), controlTickCmd())

	case snapshotMsg:
		if msg.err != nil {
			return m, nil
		}
		if m.hasSnap && m.snap.connected && !msg.snap.connected {
			m.addLogEntry("Connection lost - reconnecting...", true)
		}
		m.snap = msg.snap
		m.hasSnap = true
		if !m.editing {
			m.edit = msg.snap.wanted
		}

	case updateResultMsg:
		m.sending = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Update failed: %v", msg.err), true)
			return m, nil
		}
		m.editing = false
		m.edit = msg.settings
		if msg.sent {
			m.addLogEntry("Update acknowledged", false)
		} else {
			m.addLogEntry("Unit already matches", false)
		}
		return m, m.fetchSnapshot()

	case refreshResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Refresh failed: %v", msg.err), true)
			return m, nil
		}
		return m, m.fetchSnapshot()

	case controlEventMsg:
		m.addLogEntry(msg.text, msg.isError)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.tempInput.Focused() {
		return m.handleTempInput(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		m.row = (m.row + rowCount - 1) % rowCount

	case "down", "j":
		m.row = (m.row + 1) % rowCount

	case "left", "h":
		m.cycle(-1)

	case "right", "l":
		m.cycle(1)

	case " ":
		if m.edit.Power == cn105.PowerOn {
			m.edit.Power = cn105.PowerOff
		} else {
			m.edit.Power = cn105.PowerOn
		}
		m.editing = true

	case "t":
		m.row = rowTemp
		m.tempInput.SetValue("")
		return m, m.tempInput.Focus()

	case "esc":
		if m.editing {
			m.editing = false
			m.edit = m.snap.wanted
			m.addLogEntry("Edits discarded", false)
		}

	case "r":
		return m, m.refresh()

	case "enter":
		return m.apply()
	}

	return m, nil
}

func (m controlModel) handleTempInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.tempInput.Blur()
		return m, nil

	case tea.KeyEnter:
		m.tempInput.Blur()
		value := strings.TrimSpace(m.tempInput.Value())
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid temperature: %q", value), true)
			return m, nil
		}
		lo, hi := m.tempRange()
		if t < lo || t > hi {
			m.addLogEntry(fmt.Sprintf("Temperature must be between %.1f and %.1f", lo, hi), true)
			return m, nil
		}
		m.edit.Temperature = m.roundTemp(t)
		m.editing = true
		return m, nil
	}

	var cmd tea.Cmd
	m.tempInput, cmd = m.tempInput.Update(msg)
	return m, cmd
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("CN105 CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if !m.snap.connected {
		connStatus = warningStyle.Render(m.snap.state.String())
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit enter=send esc=discard", connStatus)))
	s.WriteString("\n\n")

	settingsPanel := boxStyle.Width(40).Render(m.renderSettings())
	statusPanel := boxStyle.Width(max(m.width-48, 30)).Render(m.renderStatus())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, settingsPanel, " ", statusPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")
	s.WriteString(m.renderEventLog())

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	editedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
	boxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	focusedBoxStyle = boxStyle.BorderForeground(lipgloss.Color("12"))
)

// rowValues returns the reported and edited value of a row
func (m controlModel) rowValues(row int) (string, string) {
	cur, edit := m.snap.current, m.edit
	switch row {
	case rowPower:
		return cur.Power, edit.Power
	case rowMode:
		return cur.Mode, edit.Mode
	case rowTemp:
		return fmt.Sprintf("%.1f°C", cur.Temperature), fmt.Sprintf("%.1f°C", edit.Temperature)
	case rowFan:
		return cur.Fan, edit.Fan
	case rowVane:
		return cur.Vane, edit.Vane
	case rowWideVane:
		return cur.WideVane, edit.WideVane
	}
	return "", ""
}

func (m controlModel) renderSettings() string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("SETTINGS"))
	s.WriteString(headerStyle.Render("       unit     wanted"))
	s.WriteString("\n")

	for row := 0; row < rowCount; row++ {
		label := fmt.Sprintf("%-12s", rowLabels[row])
		if row == m.row {
			label = selectedStyle.Render(label)
		}
		cur, edit := m.rowValues(row)
		editStyle := valueStyle
		if cur != edit {
			editStyle = editedStyle
		}
		if row == rowTemp && m.tempInput.Focused() {
			s.WriteString(fmt.Sprintf("%s %-8s %s\n", label, cur, m.tempInput.View()))
			continue
		}
		s.WriteString(fmt.Sprintf("%s %-8s %s\n", label, cur, editStyle.Render(edit)))
	}

	if m.snap.current.ISee {
		s.WriteString(headerStyle.Render("i-see sensor active\n"))
	}
	switch {
	case m.sending:
		s.WriteString(warningStyle.Render("Sending..."))
	case m.editing:
		s.WriteString(editedStyle.Render("Edited - enter to send"))
	}
	return s.String()
}

func (m controlModel) renderStatus() string {
	var s strings.Builder
	st := m.snap.status
	s.WriteString(labelStyle.Render("STATUS"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Room:      "), valueStyle.Render(fmt.Sprintf("%.1f°C", st.RoomTemperature))))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Operating: "), valueStyle.Render(strconv.FormatBool(st.Operating))))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Compressor:"), valueStyle.Render(fmt.Sprintf("%d Hz", st.CompressorFrequency))))
	timers := st.Timers.Mode
	if timers == "" {
		timers = cn105.TimerNone
	}
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Timers:    "), valueStyle.Render(timers)))

	link := fmt.Sprintf("%s @ %d baud", m.snap.state, m.snap.baudRate)
	if !m.snap.connected {
		link = warningStyle.Render(m.snap.state.String())
	}
	s.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Link:      "), link))
	return s.String()
}

func (m controlModel) renderStatisticsBar() string {
	stats := m.snap.stats
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(stats.Errors()) * 100.0 / float64(stats.TotalFrames)
	}

	errText := valueStyle.Render("0.0%")
	if errorPercent > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", stats.SentFrames)),
		labelStyle.Render("Received:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Errors:"), errText,
	)
	return boxStyle.Width(max(m.width-4, 40)).Render(content)
}

func (m controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := max(m.height-18, 4)
	start := max(len(m.eventLog)-logHeight, 0)

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.eventLog[start:] {
		icon, style := "i", warningStyle
		if entry.isError {
			icon, style = "x", errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return focusedBoxStyle.Width(max(m.width-4, 40)).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m controlModel) fetchSnapshot() tea.Cmd {
	device, ctx := m.device, m.ctx
	return func() tea.Msg {
		var snap controlSnapshot
		err := device.Do(ctx, func(e *heatpump.Engine) error {
			snap = snapshotOf(e)
			return nil
		})
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m controlModel) refresh() tea.Cmd {
	device, ctx := m.device, m.ctx
	return func() tea.Msg {
		err := device.Do(ctx, func(e *heatpump.Engine) error {
			_, err := e.Request(ctx, cn105.InfoSettings)
			return err
		})
		return refreshResultMsg{err: err}
	}
}

// apply sends the edited settings as one update
func (m controlModel) apply() (tea.Model, tea.Cmd) {
	if m.sending {
		return m, nil
	}
	if !m.snap.connected {
		m.addLogEntry("Cannot send: not connected", true)
		return m, nil
	}

	m.sending = true
	device, ctx, edit := m.device, m.ctx, m.edit
	return m, func() tea.Msg {
		var settings cn105.Settings
		var sent bool
		err := device.Do(ctx, func(e *heatpump.Engine) error {
			e.SetSettings(edit)
			if e.Pending() {
				if err := e.Update(ctx); err != nil {
					return err
				}
				sent = true
			}
			settings = e.WantedSettings()
			return nil
		})
		return updateResultMsg{settings: settings, sent: sent, err: err}
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

// cycle steps the selected row's edited value through its table
func (m *controlModel) cycle(delta int) {
	switch m.row {
	case rowPower:
		m.edit.Power = step(cn105.PowerMap, m.edit.Power, delta)
	case rowMode:
		m.edit.Mode = step(cn105.ModeMap, m.edit.Mode, delta)
	case rowFan:
		m.edit.Fan = step(cn105.FanMap, m.edit.Fan, delta)
	case rowVane:
		m.edit.Vane = step(cn105.VaneMap, m.edit.Vane, delta)
	case rowWideVane:
		m.edit.WideVane = step(cn105.WideVaneMap, m.edit.WideVane, delta)
	case rowTemp:
		increment := 1.0
		if m.snap.extended {
			increment = 0.5
		}
		lo, hi := m.tempRange()
		m.edit.Temperature = min(max(m.roundTemp(m.edit.Temperature)+float64(delta)*increment, lo), hi)
	}
	m.editing = true
}

// step moves v by delta positions in the table, wrapping around
func step(table cn105.ValueMap[string], v string, delta int) string {
	values := table.Values()
	i := max(table.Index(v), 0)
	n := len(values)
	return values[((i+delta)%n+n)%n]
}

// tempRange is the settable range: the legacy table until the unit reports
// half degrees, then the extended range
func (m controlModel) tempRange() (float64, float64) {
	if m.snap.extended {
		return cn105.MinTemperature, cn105.MaxTemperature
	}
	values := cn105.TempMap.Values()
	return float64(values[len(values)-1]), float64(values[0])
}

func (m controlModel) roundTemp(t float64) float64 {
	if m.snap.extended {
		return cn105.RoundHalf(t)
	}
	return float64(int(t + 0.5))
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

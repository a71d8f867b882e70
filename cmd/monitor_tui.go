// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voltaic/cellscope/internal/session"
	"github.com/voltaic/cellscope/pkg/bmsproto"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages
type tickMsg time.Time
type snapshotMsg struct {
	snap session.Snapshot
}
type connMsg bool
type connErrMsg string
type actionResultMsg struct {
	message string
	err     error
}

// TUI model
type monitorModel struct {
	desc      string
	numSlaves int
	sess      *session.Session
	poller    *session.Poller

	connected bool
	snap      *session.Snapshot
	pollHz    float64

	balancing bool // last commanded state, not read back

	maskInput textinput.Model
	entering  bool

	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

func newMonitorModel(desc string, numSlaves int, sess *session.Session, poller *session.Poller) *monitorModel {
	ti := textinput.New()
	ti.Placeholder = "000F"
	ti.CharLimit = 6
	ti.Width = 8

	return &monitorModel{
		desc:          desc,
		numSlaves:     numSlaves,
		sess:          sess,
		poller:        poller,
		connected:     true,
		pollHz:        1.0,
		maskInput:     ti,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.entering {
			return m.updateMaskEntry(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "r":
			if m.pollHz == 1.0 {
				m.pollHz = 0.5
			} else {
				m.pollHz = 1.0
			}
			m.poller.SetFrequency(m.pollHz)
			m.addLogEntry(fmt.Sprintf("poll rate set to %.1f Hz", m.pollHz), false)

		case "b":
			m.balancing = !m.balancing
			return m, m.setBalancingCmd(m.balancing)

		case "m":
			m.entering = true
			m.maskInput.SetValue("")
			m.maskInput.Focus()
			return m, textinput.Blink
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Rates refresh when renderStats takes its snapshot.
		return m, tickCmd()

	case snapshotMsg:
		snap := msg.snap
		m.snap = &snap

	case connMsg:
		m.connected = bool(msg)
		if m.connected {
			m.addLogEntry("connected", false)
		} else {
			m.addLogEntry("disconnected", true)
		}

	case connErrMsg:
		m.addLogEntry(string(msg), true)

	case actionResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", msg.message, msg.err), true)
		} else {
			m.addLogEntry(msg.message, false)
		}
	}

	return m, nil
}

// updateMaskEntry handles keys while the balancing mask prompt is open.
func (m *monitorModel) updateMaskEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.entering = false
		m.maskInput.Blur()
		return m, nil

	case "enter":
		m.entering = false
		m.maskInput.Blur()

		raw := strings.TrimPrefix(strings.ToLower(m.maskInput.Value()), "0x")
		mask, err := strconv.ParseUint(raw, 16, 16)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("invalid mask %q", m.maskInput.Value()), true)
			return m, nil
		}
		return m, m.setMaskCmd(uint16(mask))
	}

	var cmd tea.Cmd
	m.maskInput, cmd = m.maskInput.Update(msg)
	return m, cmd
}

// setBalancingCmd runs the blocking bus write off the update loop.
func (m *monitorModel) setBalancingCmd(enable bool) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		err := sess.SetBalancing(bmsproto.DeviceMaster, enable)
		return actionResultMsg{message: fmt.Sprintf("balancing %s", onOff(enable)), err: err}
	}
}

func (m *monitorModel) setMaskCmd(mask uint16) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		err := sess.SetBalancingSequence(bmsproto.DeviceMaster, mask)
		return actionResultMsg{message: fmt.Sprintf("balancing mask %s", formatCellMask(mask)), err: err}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("CELLSCOPE - BMS MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %d slaves | %.1f Hz | q quit  r rate  b balance  m mask",
		m.desc, m.numSlaves, m.pollHz)))
	s.WriteString("\n\n")

	if m.connected {
		s.WriteString(valueStyle.Render("● Connected"))
	} else {
		s.WriteString(errorStyle.Render("● Disconnected"))
	}
	s.WriteString("\n\n")

	if m.entering {
		s.WriteString(labelStyle.Render("Balancing mask (hex): "))
		s.WriteString(m.maskInput.View())
		s.WriteString("\n\n")
	}

	if m.snap != nil {
		s.WriteString(m.renderPack(labelStyle, valueStyle, boxStyle))
		s.WriteString(m.renderMaster(labelStyle, valueStyle, warningStyle, boxStyle))
		if len(m.snap.Slaves) > 0 {
			s.WriteString(m.renderSlaves(labelStyle, valueStyle, warningStyle, boxStyle))
		}
	} else {
		s.WriteString(warningStyle.Render("Waiting for first snapshot..."))
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderStats(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString(m.renderLog(headerStyle, labelStyle, errorStyle, warningStyle, boxStyle))

	return s.String()
}

func (m *monitorModel) renderPack(labelStyle, valueStyle, boxStyle lipgloss.Style) string {
	content := fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Pack:"), valueStyle.Render(fmt.Sprintf("%.3f V", m.snap.PackVoltage)),
		labelStyle.Render("Current:"), valueStyle.Render(fmt.Sprintf("%+.3f A", m.snap.PackCurrent)),
		labelStyle.Render("Updated:"), valueStyle.Render(m.snap.Taken.Format("15:04:05")),
	)
	return boxStyle.Render(content) + "\n\n"
}

func (m *monitorModel) renderMaster(labelStyle, valueStyle, warningStyle, boxStyle lipgloss.Style) string {
	r := &m.snap.Master
	content := strings.Builder{}

	title := "Master"
	if !r.Fresh {
		title += " " + warningStyle.Render("(stale)")
	}
	content.WriteString(labelStyle.Render(title))
	content.WriteString("\n")

	// 16 cells in four rows of four
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			i := row*4 + col
			content.WriteString(fmt.Sprintf("%s %s  ",
				labelStyle.Render(fmt.Sprintf("C%02d", i+1)),
				valueStyle.Render(fmt.Sprintf("%.3fV", r.CellVoltages[i]))))
		}
		content.WriteString("\n")
	}

	content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Zones:"),
		valueStyle.Render(fmt.Sprintf("%.1f / %.1f / %.1f / %.1f °C",
			r.Temperatures[0], r.Temperatures[1], r.Temperatures[2], r.Temperatures[3])),
		labelStyle.Render("Die:"),
		valueStyle.Render(fmt.Sprintf("%.1f / %.1f °C", r.DieTemps[0], r.DieTemps[1])),
	))

	return boxStyle.Render(content.String()) + "\n\n"
}

func (m *monitorModel) renderSlaves(labelStyle, valueStyle, warningStyle, boxStyle lipgloss.Style) string {
	content := strings.Builder{}
	content.WriteString(labelStyle.Render("Slaves"))
	content.WriteString("\n")

	nums := make([]int, 0, len(m.snap.Slaves))
	for n := range m.snap.Slaves {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	for _, n := range nums {
		r := m.snap.Slaves[n]
		minV, maxV := r.CellVoltages[0], r.CellVoltages[0]
		for _, v := range r.CellVoltages[1:] {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}

		line := fmt.Sprintf("%s %s   %s",
			labelStyle.Render(fmt.Sprintf("#%-2d", n)),
			valueStyle.Render(fmt.Sprintf("cells %.3f-%.3fV", minV, maxV)),
			valueStyle.Render(fmt.Sprintf("temps %.1f/%.1f/%.1f/%.1f°C",
				r.Temperatures[0], r.Temperatures[1], r.Temperatures[2], r.Temperatures[3])))
		if !r.Fresh {
			line += " " + warningStyle.Render("(stale)")
		}
		content.WriteString(line)
		content.WriteString("\n")
	}

	return boxStyle.Render(content.String()) + "\n\n"
}

func (m *monitorModel) renderStats(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	stats := m.sess.Stats().Snapshot()

	var okPercent float64
	if stats.CommandsSent > 0 {
		okPercent = float64(stats.Responses) * 100.0 / float64(stats.CommandsSent)
	}

	content := strings.Builder{}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Commands:"), valueStyle.Render(fmt.Sprintf("%d", stats.CommandsSent)),
		labelStyle.Render("OK:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.Responses, okPercent)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", stats.CommandRate)),
	))

	if stats.Retries > 0 || stats.Timeouts > 0 || stats.CRCErrors > 0 {
		content.WriteString(fmt.Sprintf("\n%s %s   %s %s   %s %s",
			labelStyle.Render("Retries:"), errorStyle.Render(fmt.Sprintf("%d", stats.Retries)),
			labelStyle.Render("Timeouts:"), errorStyle.Render(fmt.Sprintf("%d", stats.Timeouts)),
			labelStyle.Render("CRC errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.CRCErrors)),
		))
	}
	if stats.AnomalousValues > 0 {
		content.WriteString(fmt.Sprintf("\n%s %s",
			labelStyle.Render("Anomalous values:"), errorStyle.Render(fmt.Sprintf("%d", stats.AnomalousValues))))
	}

	return boxStyle.Render(content.String()) + "\n\n"
}

func (m *monitorModel) renderLog(headerStyle, labelStyle, errorStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22
	if logHeight < 4 {
		logHeight = 4
	}

	content := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		content.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				content.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message)))
			} else {
				content.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(content.String()))
	return s.String()
}

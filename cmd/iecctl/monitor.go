// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	iec "github.com/ZaparooProject/go-iec"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	monitorInterval = 50 * time.Millisecond
	historyLen      = 60
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	lineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(6)

	assertedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	releasedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// poller is the part of the bus the monitor reads.
type poller interface {
	Poll() iec.Code
}

type tickMsg time.Time

type monitorModel struct {
	bus     poller
	history []iec.Code
	samples int
	changes int
	paused  bool
}

func newMonitorModel(bus poller) *monitorModel {
	return &monitorModel{bus: bus}
}

func tick() tea.Cmd {
	return tea.Tick(monitorInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *monitorModel) Init() tea.Cmd {
	return tick()
}

func (m *monitorModel) sample() {
	code := m.bus.Poll()
	if n := len(m.history); n > 0 && m.history[n-1] != code {
		m.changes++
	}
	m.history = append(m.history, code)
	if len(m.history) > historyLen {
		m.history = m.history[len(m.history)-historyLen:]
	}
	m.samples++
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
		case "c":
			m.history = nil
			m.changes = 0
		}

	case tickMsg:
		if !m.paused {
			m.sample()
		}
		return m, tick()
	}
	return m, nil
}

// waveform draws one line's history, low for asserted and high for
// released, newest sample on the right.
func waveform(history []iec.Code, line iec.Code) string {
	var b strings.Builder
	for i := len(history); i < historyLen; i++ {
		b.WriteByte(' ')
	}
	for _, c := range history {
		if c&line != 0 {
			b.WriteRune('▁')
		} else {
			b.WriteRune('▔')
		}
	}
	return b.String()
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("IEC Bus Monitor"))
	if m.paused {
		b.WriteString(" ")
		b.WriteString(pausedStyle.Render("paused"))
	}
	b.WriteString("\n\n")

	var current iec.Code
	if n := len(m.history); n > 0 {
		current = m.history[n-1]
	}
	for _, l := range polledLines {
		state := releasedStyle.Render(lineState(false))
		if current&l.code != 0 {
			state = assertedStyle.Render(lineState(true))
		}
		b.WriteString(lineStyle.Render(l.name))
		b.WriteString(waveform(m.history, l.code))
		b.WriteString("  ")
		b.WriteString(state)
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n%d samples, %d changes\n\n", m.samples, m.changes))
	b.WriteString(helpStyle.Render("p pause • c clear • q quit"))
	return b.String()
}

func runMonitor(ctx context.Context, bus poller) error {
	p := tea.NewProgram(newMonitorModel(bus), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

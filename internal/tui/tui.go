// Package tui is the interactive form: paste a link, get the embed code, copy
// it or a bug report to the clipboard.
package tui

import (
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/embedfixer/embedfixer/internal/embed"
)

// SampleURL prefills the form so the first screen shows a result
const SampleURL = "https://www.youtube.com/watch?v=E3ilo1KDB7E"

// copiedFor is how long the "Copied!" feedback stays on screen
const copiedFor = 2 * time.Second

type copyTarget int

const (
	copyEmbed copyTarget = iota
	copyReport
)

// resetCopiedMsg clears copy feedback unless a newer copy replaced it
type resetCopiedMsg struct {
	target copyTarget
	seq    int
}

// Model is the Bubble Tea model for the form. All of its state is view state;
// the engine is only reached through Recognize and NewReport.
type Model struct {
	registry *embed.Registry
	copyFn   func(string) error
	input    textinput.Model

	result *embed.Result
	err    error
	report *embed.Report

	embedCopied  bool
	reportCopied bool
	copyErr      error
	seq          [2]int // per copyTarget

	width int
}

// New creates the form model with the sample link already recognized
func New(registry *embed.Registry, copyFn func(string) error) Model {
	ti := textinput.New()
	ti.Placeholder = "Paste a YouTube or Spotify link"
	ti.Prompt = "› "
	ti.CharLimit = 2048
	ti.Width = 72
	ti.SetValue(SampleURL)
	ti.Focus()

	m := Model{
		registry: registry,
		copyFn:   copyFn,
		input:    ti,
	}
	m.recognize()
	return m
}

// Run starts the form on the terminal
func Run(registry *embed.Registry) error {
	_, err := tea.NewProgram(New(registry, clipboard.WriteAll)).Run()
	return err
}

// recognize resets everything derived from the previous link. Pasted text
// often carries invisible characters, so the input is cleaned first.
func (m *Model) recognize() {
	m.report = nil
	m.embedCopied, m.reportCopied, m.copyErr = false, false, nil
	m.result, m.err = m.registry.Recognize(embed.CleanInput(m.input.Value()))
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 8 {
			m.input.Width = msg.Width - 8
		}
		return m, nil

	case resetCopiedMsg:
		if msg.seq == m.seq[msg.target] {
			switch msg.target {
			case copyEmbed:
				m.embedCopied = false
			case copyReport:
				m.reportCopied = false
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			m.recognize()
			return m, nil

		case "ctrl+y":
			if m.result == nil {
				return m, nil
			}
			return m.copyText(m.result.EmbedCode, copyEmbed)

		case "ctrl+r":
			if m.result != nil && m.report == nil {
				rep := embed.NewReport(m.result)
				m.report = &rep
			}
			return m, nil

		case "ctrl+t":
			if m.report == nil {
				return m, nil
			}
			return m.copyText(m.report.String(), copyReport)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) copyText(s string, target copyTarget) (tea.Model, tea.Cmd) {
	if err := m.copyFn(s); err != nil {
		m.copyErr = err
		return m, nil
	}
	m.copyErr = nil
	m.seq[target]++
	switch target {
	case copyEmbed:
		m.embedCopied = true
	case copyReport:
		m.reportCopied = true
	}

	seq := m.seq[target]
	return m, tea.Tick(copiedFor, func(time.Time) tea.Msg {
		return resetCopiedMsg{target: target, seq: seq}
	})
}

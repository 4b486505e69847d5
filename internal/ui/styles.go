// Package ui renders terminal output for the ft command.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	accent = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	pass   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	fail   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	muted  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	income  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	expense = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	header = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell   = lipgloss.NewStyle().Padding(0, 1)
)

func init() {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// DisableColor forces plain output, e.g. when writing to a pipe.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// RenderAccent highlights headings and prompts.
func RenderAccent(s string) string { return accent.Render(s) }

// RenderPass renders a success marker or message.
func RenderPass(s string) string { return pass.Render(s) }

// RenderWarn renders a warning.
func RenderWarn(s string) string { return warn.Render(s) }

// RenderFail renders an error.
func RenderFail(s string) string { return fail.Render(s) }

// RenderMuted renders secondary text.
func RenderMuted(s string) string { return muted.Render(s) }

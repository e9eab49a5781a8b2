// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette for dark terminal backgrounds.
const (
	colorTitle   = lipgloss.Color("#7C3AED") // purple
	colorMuted   = lipgloss.Color("#6B7280")
	colorOK      = lipgloss.Color("#10B981")
	colorFailed  = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B") // conflicts and scan diagnostics
	colorID      = lipgloss.Color("#3B82F6") // mod ids, paths and commands
	colorDetail  = lipgloss.Color("#9CA3AF")
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	SuccessStyle  = lipgloss.NewStyle().Foreground(colorOK)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorFailed)
	WarningStyle  = lipgloss.NewStyle().Foreground(colorWarning)

	// CmdStyle renders mod ids, command names and paths.
	CmdStyle = lipgloss.NewStyle().Foreground(colorID)

	// VerboseStyle renders --verbose details such as version segments.
	VerboseStyle = lipgloss.NewStyle().Foreground(colorDetail)
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides rich terminal output styling for the ArchLens CLI.
//
// Styling is automatically disabled when stdout is not a terminal or
// when NO_COLOR is set, so piped output stays clean for scripts.
package ux

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors (keeping standard conventions for clarity)
	ColorSuccess = lipgloss.Color("#2CD7C7") // Bright teal for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// plain disables styling for non-terminal output.
var plain = os.Getenv("NO_COLOR") != "" ||
	!(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

// SetPlain overrides TTY detection. Plain mode emits unstyled text.
func SetPlain(p bool) { plain = p }

// PlainMode reports whether styling is currently disabled.
func PlainMode() bool { return plain }

// render applies the style unless styling is disabled.
func render(style lipgloss.Style, text string) string {
	if plain {
		return text
	}
	return style.Render(text)
}

// Title prints a styled section title.
func Title(text string) {
	fmt.Println(render(Styles.Title, text))
}

// Success prints a success message with a checkmark.
func Success(text string) {
	fmt.Printf("%s %s\n", render(Styles.Success, "✓"), text)
}

// Warn prints a warning message.
func Warn(text string) {
	fmt.Printf("%s %s\n", render(Styles.Warning, "⚠"), text)
}

// Error prints an error message.
func Error(text string) {
	fmt.Printf("%s %s\n", render(Styles.Error, "✗"), text)
}

// Info prints a muted informational message.
func Info(text string) {
	fmt.Println(render(Styles.Muted, text))
}

// Bullet prints an indented list item.
func Bullet(text string) {
	fmt.Printf("  %s %s\n", render(Styles.Subtitle, "•"), text)
}

// SeverityBadge styles an issue severity: HIGH red, MEDIUM amber, LOW
// muted. Unknown severities pass through unstyled.
func SeverityBadge(severity string) string {
	switch strings.ToUpper(severity) {
	case "HIGH":
		return render(Styles.Error, "HIGH")
	case "MEDIUM":
		return render(Styles.Warning, "MEDIUM")
	case "LOW":
		return render(Styles.Muted, "LOW")
	default:
		return severity
	}
}

// StatusBadge styles an analysis lifecycle state.
func StatusBadge(status string) string {
	switch strings.ToLower(status) {
	case "completed":
		return render(Styles.Success, status)
	case "failed":
		return render(Styles.Error, status)
	case "processing":
		return render(Styles.Warning, status)
	default:
		return render(Styles.Muted, status)
	}
}

// Score renders a 0-10 score colored by band: 7 and above teal, 4 and
// above amber, below 4 red.
func Score(score float64) string {
	text := fmt.Sprintf("%.1f/10", score)
	switch {
	case score >= 7.0:
		return render(Styles.Success, text)
	case score >= 4.0:
		return render(Styles.Warning, text)
	default:
		return render(Styles.Error, text)
	}
}

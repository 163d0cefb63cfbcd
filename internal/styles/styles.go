// Package styles provides terminal color and formatting utilities for btrcall
// tools. It includes functions for success, error, warning, info, and engine
// call output.
package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette for btrcall
var (
	// Primary colors
	Primary = lipgloss.Color("#7D56F4") // Purple
	Accent  = lipgloss.Color("#F25D94") // Pink

	// Status colors
	SuccessColor = lipgloss.Color("#04B575") // Green
	WarningColor = lipgloss.Color("#FFB347") // Orange
	ErrorColor   = lipgloss.Color("#FF6B6B") // Red
	InfoColor    = lipgloss.Color("#54A6FF") // Blue

	// Text colors
	Text    = lipgloss.Color("#FAFAFA") // Light
	TextDim = lipgloss.Color("#A8A8A8") // Dim

	BackgroundAlt = lipgloss.Color("#2D2D2D")
)

// Base styles for common UI elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			PaddingTop(1).
			PaddingBottom(1)

	SubHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(InfoColor)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SuccessColor)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ErrorColor)

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(WarningColor)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	BoldStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Text)

	DimStyle = lipgloss.NewStyle().
			Foreground(TextDim)

	CodeStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Background(BackgroundAlt).
			PaddingLeft(1).
			PaddingRight(1)

	// operation column of call traces
	OperationStyle = lipgloss.NewStyle().
			Bold(true).
			Width(24)
)

// Convenience functions for commonly used styled text
func Success(text string) string {
	return SuccessStyle.Render("✓ " + text)
}

func Error(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

func Warning(text string) string {
	return WarningStyle.Render("⚠ " + text)
}

func Info(text string) string {
	return InfoStyle.Render("ℹ " + text)
}

func Header(text string) string {
	return HeaderStyle.Render("🗄 " + text)
}

func SubHeader(text string) string {
	return SubHeaderStyle.Render(text)
}

func Bold(text string) string {
	return BoldStyle.Render(text)
}

func Dim(text string) string {
	return DimStyle.Render(text)
}

func Code(text string) string {
	return CodeStyle.Render(text)
}

// Engine call styles

// CallResult renders one line of a call trace. matched reports whether the
// status is the one the caller expected.
func CallResult(operation, status string, code int32, matched bool) string {
	result := fmt.Sprintf("%s (%d)", status, code)
	if matched {
		result = SuccessStyle.Render(result)
	} else {
		result = ErrorStyle.Render(result)
	}
	return "  " + OperationStyle.Render(operation) + result
}

// Deviation reports an unexpected status in a call sequence.
func Deviation(operation, want, got string) string {
	return Error(fmt.Sprintf("%s returned %s, expected %s", operation, Bold(got), Bold(want)))
}

// CodeTable renders a table of numeric codes, their names and any notes
// that follow in further columns.
func CodeTable(title string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(SubHeader(title))
	b.WriteString("\n")
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		b.WriteString("  ")
		b.WriteString(DimStyle.Width(8).Render(row[0]))
		if len(row) == 2 {
			b.WriteString(row[1])
		} else {
			b.WriteString(lipgloss.NewStyle().Width(26).Render(row[1]))
			b.WriteString(Dim(strings.Join(row[2:], " ")))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ErrorDetails formats a bridge fault with the call context it occurred in.
func ErrorDetails(err error, context map[string]string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(ErrorColor).
		Padding(1).
		Margin(1)

	content := ErrorStyle.Render("Error: ") + err.Error() + "\n"

	if len(context) > 0 {
		content += "\n" + DimStyle.Render("Context:") + "\n"
		for key, value := range context {
			content += DimStyle.Render("  "+key+": ") + value + "\n"
		}
	}

	return style.Render(content)
}

// Example renders a command with its description for help output
func Example(command, description string) string {
	return "  " + Code(command) + " - " + Dim(description)
}

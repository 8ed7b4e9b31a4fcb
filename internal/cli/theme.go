package cli

import (
	"charm.land/lipgloss/v2"

	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
	"github.com/SAP-F-2025/quiz-portal/internal/client/review"
)

var (
	primary = lipgloss.Color("#8B5CF6")
	success = lipgloss.Color("#22C55E")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#F43F5E")
	dim     = lipgloss.Color("#94A3B8")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primary)
	hintStyle     = lipgloss.NewStyle().Foreground(dim).Italic(true)
	selectedStyle = lipgloss.NewStyle().Foreground(primary).Bold(true)
	correctStyle  = lipgloss.NewStyle().Foreground(success).Bold(true)
	wrongStyle    = lipgloss.NewStyle().Foreground(danger).Bold(true)
)

func noticeStyle(level notice.Level) lipgloss.Style {
	switch level {
	case notice.Success:
		return lipgloss.NewStyle().Foreground(success).Bold(true)
	case notice.Warning:
		return lipgloss.NewStyle().Foreground(warning).Bold(true)
	case notice.Error:
		return lipgloss.NewStyle().Foreground(danger).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(primary)
	}
}

func bandStyle(b review.Band) lipgloss.Style {
	switch b {
	case review.High:
		return lipgloss.NewStyle().Foreground(success).Bold(true)
	case review.Medium:
		return lipgloss.NewStyle().Foreground(warning).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(danger).Bold(true)
	}
}

// Package ui holds the lipgloss styles for CLI status output.
package ui

import (
	"fmt"

	"crossfade/internal/models"
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title renders a section heading.
func Title(s string) string { return styles.title.Render(s) }

// Help renders de-emphasized hint text.
func Help(s string) string { return styles.help.Render(s) }

// JobStatus colors a job status for terminal display.
func JobStatus(status models.JobStatus) string {
	s := string(status)
	switch status {
	case models.JobCompleted:
		return styles.ok.Render(s)
	case models.JobFailed:
		return styles.err.Render(s)
	case models.JobReviewPending:
		return styles.warn.Render(s)
	default:
		return styles.help.Render(s)
	}
}

// MatchStatus colors a match status for terminal display.
func MatchStatus(status models.MatchStatus) string {
	s := string(status)
	switch status {
	case models.MatchAutoMatched, models.MatchUserApproved:
		return styles.ok.Render(s)
	case models.MatchFailed:
		return styles.err.Render(s)
	case models.MatchPendingReview:
		return styles.warn.Render(s)
	default:
		return styles.help.Render(s)
	}
}

// Confidence renders a score colored by the band it falls in.
func Confidence(score float64) string {
	s := fmt.Sprintf("%.2f", score)
	switch {
	case score >= 0.85:
		return styles.ok.Render(s)
	case score >= 0.60:
		return styles.warn.Render(s)
	default:
		return styles.err.Render(s)
	}
}

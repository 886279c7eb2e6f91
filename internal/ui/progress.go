package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// RenderProgress renders a static progress bar followed by the percentage
// and a position counter, e.g. "████░░░░  50%  [5/10]".
func RenderProgress(current, total, barWidth int) string {
	percent := 0.0
	if total > 0 {
		percent = float64(current) / float64(total)
	}
	if percent > 1 {
		percent = 1
	}

	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)

	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", bar.ViewAs(percent), percent*100, current, total))
}

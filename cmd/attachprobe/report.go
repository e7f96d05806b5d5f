package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(12)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	pinnedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func (r *report) render() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Attach Probe"))
	b.WriteString("\n\n")

	row := func(label string, value any) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(fmt.Sprint(value))
		b.WriteByte('\n')
	}
	row("vm", r.source)
	row("threads", len(r.workers))
	row("elapsed", r.elapsed.Round(time.Microsecond))
	row("attaches", r.stats.Attaches)
	row("detaches", r.stats.Detaches)
	row("reused", r.stats.Reused)
	row("suppressed", r.stats.Suppressed)
	b.WriteByte('\n')

	for i, w := range r.workers {
		status := okStyle.Render("ok")
		switch {
		case w.err != nil:
			status = errorStyle.Render(fmt.Sprintf("failed: %v", w.err))
		case w.pinned:
			status = pinnedStyle.Render("ok, kept attached")
		}
		fmt.Fprintf(&b, "%s %d rounds  %s\n", labelStyle.Render(fmt.Sprintf("thread %d", i)), w.completed, status)
	}

	b.WriteByte('\n')
	b.WriteString(helpStyle.Render("reused counts nested Perform calls that found the thread attached"))
	b.WriteByte('\n')
	return b.String()
}

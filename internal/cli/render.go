package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/idea-forge/internal/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Width(10)
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// printSummary writes a boxed summary of a finished or failed run.
func printSummary(w io.Writer, res orchestrator.Result, runErr error) {
	rep := res.Report
	var lines []string
	row := func(label, value string) {
		lines = append(lines, labelStyle.Render(label)+value)
	}

	if runErr != nil {
		lines = append(lines, failStyle.Render("Run failed"))
		var re *orchestrator.RunError
		if errors.As(runErr, &re) {
			row("stage", re.Stage)
			row("reason", re.Reason)
			if re.LastRationale != "" {
				row("last", re.LastRationale)
			}
		} else {
			row("error", runErr.Error())
		}
	} else {
		doc := res.Document
		lines = append(lines, titleStyle.Render(doc.Title))
		row("genre", fmt.Sprintf("%s (%s)", doc.Genre, doc.Category))
		row("score", fmt.Sprintf("%.2f", doc.Score.Composite()))
		if doc.ForcedAccept {
			row("accepted", "after the revision budget ran out")
		}
		row("revisions", fmt.Sprintf("%d", doc.Winner.RevisionNumber))
		if len(doc.Tropes) > 0 {
			row("tropes", strings.Join(doc.Tropes, ", "))
		}
		if res.Written.Path != "" {
			row("file", res.Written.Path)
		}
		if res.Written.HTMLPath != "" {
			row("html", res.Written.HTMLPath)
		}
		if res.Written.HTMLErr != nil {
			row("html", "not written: "+res.Written.HTMLErr.Error())
		}
	}
	if rep.RunID != "" {
		row("run", rep.RunID)
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"igfetch/pkg/jobs"
)

const maxURLWidth = 48

// JobsTable renders jobs as a bordered table, one row per job
func JobsTable(list []*jobs.Job) string {
	rows := make([][]string, 0, len(list))
	for _, j := range list {
		rows = append(rows, []string{
			j.ID,
			string(j.Type),
			string(j.Status),
			truncate(j.URL, maxURLWidth),
			j.CreatedAt.Local().Format(time.DateTime),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][2]).Padding(0, 1)
			}
			return cellStyle
		}).
		Headers("ID", "TYPE", "STATUS", "URL", "CREATED").
		Rows(rows...)

	return t.String()
}

// JobDetail renders every field of a job as label/value lines
func JobDetail(j *jobs.Job) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}

	line("ID", j.ID)
	line("URL", j.URL)
	line("Type", string(j.Type))
	line("Status", statusStyle(string(j.Status)).Render(string(j.Status)))
	line("Created", j.CreatedAt.Local().Format(time.DateTime))
	line("Updated", j.UpdatedAt.Local().Format(time.DateTime))
	if j.DownloadedAt != nil {
		line("Downloaded", j.DownloadedAt.Local().Format(time.DateTime))
	}
	line("File", j.FilePath)
	if j.FileSize > 0 {
		line("Size", FormatBytes(j.FileSize))
	}
	if j.Error != "" {
		line("Error", errorStyle.Render(j.Error))
	}
	if m := j.Metadata; m != nil {
		line("Username", m.Username)
		line("Caption", truncate(m.Caption, 80))
		line("Media", fmt.Sprintf("%d (%s)", m.MediaCount, m.Source))
		for _, u := range m.MediaURLs {
			line("  url", dimStyle.Render(truncate(u, 100)))
		}
	}

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

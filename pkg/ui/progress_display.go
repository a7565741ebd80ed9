package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a one-line summary of a batch of jobs
type ProgressDisplay struct {
	mu        sync.Mutex
	console   *Console
	total     int
	completed int
	failed    int
	bytes     int64
	current   string
	startTime time.Time
	now       func() time.Time
}

// NewProgressDisplay creates a progress display for total jobs. total may
// grow as URLs are read.
func NewProgressDisplay(console *Console, total int) *ProgressDisplay {
	return &ProgressDisplay{
		console:   console,
		total:     total,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// AddTotal grows the number of expected jobs
func (p *ProgressDisplay) AddTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total += n
}

// JobFinished records one terminal job
func (p *ProgressDisplay) JobFinished(url string, size int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = url
	if err != nil {
		p.failed++
	} else {
		p.completed++
		p.bytes += size
	}
	p.print()
}

// Line returns the current progress line without printing it
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *ProgressDisplay) line() string {
	done := p.completed + p.failed
	progress := 0.0
	if p.total > 0 {
		progress = float64(done) / float64(p.total)
	}
	if progress > 1 {
		progress = 1
	}

	barWidth := 20
	filled := int(progress * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("[%s] %d/%d • %s • %s",
		bar,
		done,
		p.total,
		FormatBytes(p.bytes),
		FormatDuration(p.now().Sub(p.startTime)),
	)
	if p.failed > 0 {
		line += " • " + errorStyle.Render(fmt.Sprintf("%d failed", p.failed))
	}
	if p.current != "" {
		line += " • " + dimStyle.Render(p.current)
	}
	return line
}

func (p *ProgressDisplay) print() {
	if p.console == nil || p.console.quiet {
		return
	}
	p.console.write(p.console.out, fmt.Sprintf("\r%s\r%s", strings.Repeat(" ", 120), p.line()))
}

// Complete prints the batch summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.console == nil || p.console.quiet {
		return
	}
	elapsed := p.now().Sub(p.startTime)

	var b strings.Builder
	fmt.Fprintf(&b, "\n\n%s Downloaded %d of %d items\n",
		successStyle.Render("✓"),
		p.completed,
		p.total,
	)
	fmt.Fprintf(&b, "  %s %s in %s\n",
		dimStyle.Render("•"),
		FormatBytes(p.bytes),
		FormatDuration(elapsed),
	)
	if p.failed > 0 {
		fmt.Fprintf(&b, "  %s %d jobs failed\n", dimStyle.Render("•"), p.failed)
	}
	p.console.write(p.console.out, b.String())
}

// Counts returns completed and failed job counts
func (p *ProgressDisplay) Counts() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.failed
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

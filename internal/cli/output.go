package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/GriffinCanCode/toolfetch/internal/netrequest"
	"github.com/fatih/color"
)

// summary is the one-line report printed to stderr after each fetch.
type summary struct {
	name     string
	success  bool
	status   int
	message  string
	location string
	hops     int
	detail   string
}

func summarize[T any](name string, r netrequest.Result[T]) summary {
	return summary{
		name:     name,
		success:  r.Success,
		status:   r.StatusCode,
		message:  r.Message,
		location: r.Location,
		hops:     r.Hops,
	}
}

func printSummary(w io.Writer, sm summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	symbol := green("✓")
	if !sm.success {
		symbol = red("✗")
	}
	status := "---"
	if sm.status != 0 {
		status = strconv.Itoa(sm.status)
	}

	fmt.Fprintf(w, "%s %s %s", symbol, status, sm.name)
	if sm.message != "" {
		msg := sm.message
		if !sm.success {
			msg = red(msg)
		}
		fmt.Fprintf(w, " %s", msg)
	}
	if sm.location != "" {
		fmt.Fprintf(w, " %s", yellow("-> "+sm.location))
	}
	if sm.hops > 0 {
		fmt.Fprintf(w, " %s", cyan(fmt.Sprintf("(%d redirects)", sm.hops)))
	}
	if sm.detail != "" {
		fmt.Fprintf(w, " %s", cyan("["+sm.detail+"]"))
	}
	fmt.Fprintln(w)
}

// progressLine renders transfer progress on a single, rewritten line.
type progressLine struct {
	w      io.Writer
	active bool
}

func (p *progressLine) update(pr netrequest.Progress) {
	p.active = true
	if pr.Total > 0 {
		pct := 100 * float64(pr.Received) / float64(pr.Total)
		fmt.Fprintf(p.w, "\r%s / %s (%3.0f%%)", formatBytes(pr.Received), formatBytes(pr.Total), pct)
		return
	}
	fmt.Fprintf(p.w, "\r%s", formatBytes(pr.Received))
}

func (p *progressLine) finish() {
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Package dashboard renders monitor snapshots as a terminal status board.
package dashboard

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/usecase"
)

const clearScreen = "\033[H\033[2J"

// Renderer writes snapshots to a terminal.
type Renderer struct {
	w     io.Writer
	clear bool

	title *color.Color
	ok    *color.Color
	warn  *color.Color
	bad   *color.Color
	dim   *color.Color
}

// NewRenderer creates a renderer writing to w. With noColor set, output is
// plain text and the screen is not cleared between frames.
func NewRenderer(w io.Writer, noColor bool) *Renderer {
	r := &Renderer{
		w:     w,
		clear: !noColor,
		title: color.New(color.FgCyan, color.Bold),
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed, color.Bold),
		dim:   color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{r.title, r.ok, r.warn, r.bad, r.dim} {
			c.DisableColor()
		}
	}
	return r
}

// Render draws one frame.
func (r *Renderer) Render(snap usecase.Snapshot, err error) {
	now := snap.TakenAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if r.clear {
		fmt.Fprint(r.w, clearScreen)
	}
	r.title.Fprintf(r.w, "MEDALLION PIPELINE MONITOR  %s\n", now.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(r.w, strings.Repeat("=", 60))
	if err != nil {
		r.bad.Fprintf(r.w, "Snapshot failed: %v\n", err)
		return
	}

	r.section("Recent uploads (bronze)")
	if len(snap.RecentUploads) == 0 {
		r.dim.Fprintln(r.w, "  No uploads found")
	}
	for _, obj := range snap.RecentUploads {
		fmt.Fprintf(r.w, "  %-48s %10s  %s\n", obj.Key, HumanSize(obj.Size), RelativeTime(obj.LastModified, now))
	}

	r.section("Layers")
	for _, l := range []struct {
		name  string
		stats usecase.LayerStats
	}{
		{"silver", snap.Silver},
		{"gold daily", snap.GoldDaily},
		{"gold sessions", snap.GoldSessions},
	} {
		c := r.ok
		if l.stats.Files == 0 {
			c = r.warn
		}
		c.Fprintf(r.w, "  %-14s %6d files %10s  updated %s\n",
			l.name, l.stats.Files, HumanSize(l.stats.Bytes), RelativeTime(l.stats.LastModified, now))
	}

	if snap.Queue != nil {
		r.section("Stage queue")
		q := snap.Queue
		fmt.Fprintf(r.w, "  %s: length %d, pending %d, consumers %d, ", q.Stream, q.Length, q.Pending, q.Consumers)
		if q.DeadLetters > 0 {
			r.bad.Fprintf(r.w, "dead letters %d\n", q.DeadLetters)
		} else {
			r.ok.Fprintln(r.w, "dead letters 0")
		}
	}

	if len(snap.Runs) > 0 {
		r.section("Stage runs")
		for _, run := range snap.Runs {
			r.status(string(run.Status)).Fprintf(r.w, "  %-10s", run.Status)
			fmt.Fprintf(r.w, " %-17s in %-7d out %-7d %s\n", run.Stage, run.InputCount, run.OutputCount, RelativeTime(run.StartedAt, now))
			if run.ErrorMessage != "" {
				r.bad.Fprintf(r.w, "             %s\n", run.ErrorMessage)
			}
		}
	}

	if len(snap.Jobs) > 0 {
		r.section("ETL jobs")
		for _, job := range snap.Jobs {
			r.status(job.State).Fprintf(r.w, "  %-10s", job.State)
			fmt.Fprintf(r.w, " %-32s %s\n", job.Job, RelativeTime(job.StartedOn, now))
		}
	}

	if len(snap.DeadLetters) > 0 {
		r.section("Dead letters")
		for _, dl := range snap.DeadLetters {
			r.bad.Fprintf(r.w, "  %s %s %s: %s\n", dl.ID, dl.Invocation.Stage, dl.Invocation.Key, dl.Error)
		}
	}

	if len(snap.Errors) > 0 {
		r.section("Unavailable")
		names := make([]string, 0, len(snap.Errors))
		for name := range snap.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r.warn.Fprintf(r.w, "  %s: %s\n", name, snap.Errors[name])
		}
	}
}

func (r *Renderer) section(name string) {
	fmt.Fprintln(r.w)
	r.title.Fprintln(r.w, name)
}

func (r *Renderer) status(state string) *color.Color {
	switch state {
	case string(domain.RunSucceeded):
		return r.ok
	case string(domain.RunFailed), "ERROR", "TIMEOUT", "STOPPED":
		return r.bad
	default:
		return r.warn
	}
}

// HumanSize formats a byte count with binary units.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 3; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

// RelativeTime describes t relative to now.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return t.UTC().Format("15:04:05")
	}
}

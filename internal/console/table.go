package console

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/frostdev-ops/ha-trend-monitor/internal/core/poller"
	"github.com/frostdev-ops/ha-trend-monitor/internal/core/tracking"
)

const clearScreen = "\033[H\033[2J"

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Renderer prints every snapshot as a table and every notification as a
// single line. It implements poller.Publisher.
type Renderer struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool
	width int
	now   func() time.Time
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithClearScreen redraws the table in place instead of appending.
func WithClearScreen() RendererOption {
	return func(r *Renderer) { r.clear = true }
}

// WithSparklineWidth limits the sparkline to the most recent n readings.
func WithSparklineWidth(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.width = n
		}
	}
}

func NewRenderer(out io.Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{out: out, width: 24, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) PublishSnapshot(snap poller.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clear {
		fmt.Fprint(r.out, clearScreen)
	}

	if len(snap.Rows) == 0 {
		fmt.Fprintln(r.out, "No entities tracked.")
		return
	}

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tNAME\tVALUE\tTREND\tHISTORY\tSTATUS")
	for _, row := range snap.Rows {
		value := row.DisplayValue
		if row.Unit != "" && value != "" {
			value += " " + row.Unit
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.EntityID, row.FriendlyName, value, trendCell(row.Trend), Sparkline(row.History, r.width), status(row))
	}
	tw.Flush()

	fmt.Fprintf(r.out, "tick #%d, %d entities in directory, updated %s\n",
		snap.Sequence, snap.DirectorySize, humanize.RelTime(snap.TakenAt, r.now(), "ago", "from now"))
}

func (r *Renderer) PublishNotification(n poller.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subject := n.Kind
	if n.EntityID != "" {
		subject = n.EntityID
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", strings.ToUpper(n.Level), subject, n.Message)
}

func trendCell(t tracking.Trend) string {
	if t == tracking.TrendUnavailable {
		return "-"
	}
	return t.Symbol()
}

func status(row tracking.Row) string {
	switch {
	case row.Stale:
		return "stale: " + row.LastError
	case row.LastError != "":
		return row.LastError
	}
	return row.State.String()
}

// Sparkline draws the last width values as block characters scaled between
// their minimum and maximum. A flat series is drawn at the lowest level.
func Sparkline(values []float64, width int) string {
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range values {
		level := 0
		if hi > lo {
			level = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

package dashboard

import (
	"context"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"attendboard/internal/feed"
	"attendboard/internal/metrics"
	"attendboard/internal/store"
)

// TodayLayout is the date format the check-in device writes, e.g. 07-March-2026.
const TodayLayout = "02-January-2006"

// CountEntry is one aggregate bucket for the charts and rankings.
type CountEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary holds the headline counters shown above the tabs.
type Summary struct {
	DistinctStudents int    `json:"distinct_students"`
	TodayCount       int    `json:"today_count"`
	TotalRecords     int    `json:"total_records"`
	Connection       string `json:"connection"`
	Warning          string `json:"warning,omitempty"`
}

// View is one rendered set of view models. Handlers serve the latest View;
// a new one replaces it wholesale each render cycle.
type View struct {
	Summary    Summary        `json:"summary"`
	Recent     []store.Record `json:"recent"`
	ByStudent  []CountEntry   `json:"by_student"`
	ByDate     []CountEntry   `json:"by_date"`
	Top        []CountEntry   `json:"top"`
	Live       []feed.Event   `json:"live"`
	Dates      []string       `json:"dates"`
	RenderedAt time.Time      `json:"rendered_at"`
}

// Controller aggregates the attendance store and the live buffer into view
// models on a fixed cadence or on a manual trigger.
type Controller struct {
	store       *store.Store
	buffer      *feed.Buffer
	connState   func() string
	recentLimit int
	interval    time.Duration
	now         func() time.Time

	mu   sync.RWMutex
	view View
}

// New creates a controller. connState supplies the broker state string for
// the summary; recentLimit caps the recent-records table.
func New(st *store.Store, buf *feed.Buffer, connState func() string, recentLimit int, interval time.Duration) *Controller {
	if recentLimit <= 0 {
		recentLimit = 10
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Controller{
		store:       st,
		buffer:      buf,
		connState:   connState,
		recentLimit: recentLimit,
		interval:    interval,
		now:         time.Now,
	}
}

// Run drives the automatic refresh loop: render, sleep, render again.
// It returns when ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.Render("auto")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Render("auto")
		case <-ctx.Done():
			return
		}
	}
}

// RunCollector drains the feed queue into the live buffer until ctx is
// cancelled. It is the only writer of the buffer.
func (c *Controller) RunCollector(ctx context.Context, q feed.Queue) error {
	events, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	go func() {
		for evt := range events {
			c.buffer.Push(evt)
		}
	}()
	return nil
}

// Render computes a fresh View from the store and buffer and installs it.
func (c *Controller) Render(trigger string) View {
	recs, err := c.store.Load()
	warning := ""
	if err != nil {
		warning = err.Error()
		metrics.StoreReloads.WithLabelValues("error").Inc()
		log.Printf("[dashboard] attendance load: %v", err)
	} else {
		metrics.StoreReloads.WithLabelValues("ok").Inc()
	}

	now := c.now()
	today := now.Format(TodayLayout)

	byStudent := countBy(recs, func(r store.Record) string { return r.Name })
	byDate := countBy(recs, func(r store.Record) string { return r.Date })

	todayCount := 0
	for _, e := range byDate {
		if e.Key == today {
			todayCount = e.Count
			break
		}
	}

	view := View{
		Summary: Summary{
			DistinctStudents: len(byStudent),
			TodayCount:       todayCount,
			TotalRecords:     len(recs),
			Connection:       c.connState(),
			Warning:          warning,
		},
		Recent:     Reverse(tail(recs, c.recentLimit)),
		ByStudent:  byStudent,
		ByDate:     sortedByKey(byDate),
		Top:        TopN(byStudent, 5),
		Live:       c.buffer.Snapshot(),
		Dates:      keys(byDate),
		RenderedAt: now,
	}

	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
	metrics.RenderCycles.WithLabelValues(trigger).Inc()
	return view
}

// ForceRender invalidates the store cache and renders immediately. It backs
// the manual refresh action, which always re-reads the file.
func (c *Controller) ForceRender() View {
	c.store.Invalidate()
	return c.Render("manual")
}

// View returns the most recently rendered view models.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// History returns the full history matching the filters, newest first,
// along with the distinct dates for the filter dropdown.
func (c *Controller) History(name, date string) ([]store.Record, []string, error) {
	recs, err := c.store.Load()
	dates := keys(countBy(recs, func(r store.Record) string { return r.Date }))
	return Reverse(Filter(recs, name, date)), dates, err
}

// ExportCSV writes the filtered history to w in the attendance file format
// and returns the timestamped download filename. Rows keep file order so a
// re-load of the export reproduces the same records.
func (c *Controller) ExportCSV(w io.Writer, name, date string) (string, error) {
	recs, err := c.store.Load()
	if err != nil {
		return "", err
	}
	if err := store.WriteCSV(w, Filter(recs, name, date)); err != nil {
		return "", err
	}
	return store.ExportFilename(c.now()), nil
}

// Filter applies the history filters: case-insensitive substring match on
// name and exact match on date. Empty values mean no constraint; both set
// means both must hold.
func Filter(recs []store.Record, name, date string) []store.Record {
	name = strings.ToLower(strings.TrimSpace(name))
	out := make([]store.Record, 0, len(recs))
	for _, r := range recs {
		if name != "" && !strings.Contains(strings.ToLower(r.Name), name) {
			continue
		}
		if date != "" && r.Date != date {
			continue
		}
		out = append(out, r)
	}
	return out
}

// TopN returns the n highest counts, stable: ties keep the order in which
// the keys were first encountered in the aggregate.
func TopN(entries []CountEntry, n int) []CountEntry {
	out := make([]CountEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Reverse returns recs in reverse order, newest insertion first.
func Reverse(recs []store.Record) []store.Record {
	out := make([]store.Record, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r
	}
	return out
}

// countBy aggregates counts keyed by key(r), preserving first-encounter order.
func countBy(recs []store.Record, key func(store.Record) string) []CountEntry {
	idx := make(map[string]int, len(recs))
	var out []CountEntry
	for _, r := range recs {
		k := key(r)
		if i, ok := idx[k]; ok {
			out[i].Count++
			continue
		}
		idx[k] = len(out)
		out = append(out, CountEntry{Key: k, Count: 1})
	}
	return out
}

func sortedByKey(entries []CountEntry) []CountEntry {
	out := make([]CountEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func keys(entries []CountEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func tail(recs []store.Record, n int) []store.Record {
	if len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}

// Package dataaccess searches and downloads mission data products from
// the archive. Products live in one bucket per instrument, keyed by data
// level and month; a local-directory client serves offline use with the
// same interface.
package dataaccess

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/swxlab/swxkit/internal/config"
	"github.com/swxlab/swxkit/internal/filename"
)

// defaultStartTime bounds open-ended searches; no mission data predates it.
var defaultStartTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Query selects products to search for. Zero-valued fields widen the
// search: no instrument searches every instrument, no levels every data
// level, no time bounds the whole archive.
type Query struct {
	Instrument string
	Levels     []string
	StartTime  time.Time
	EndTime    time.Time

	// Development selects the development buckets instead of production.
	Development bool
}

// Result is one product found by a search.
type Result struct {
	Key    string
	Bucket string

	// Fields holds the properties parsed from the object's filename.
	// Parsed is false for objects whose name does not follow the mission
	// convention; such rows carry only the object metadata.
	Fields filename.Fields
	Parsed bool

	Size         int64
	ETag         string
	LastModified time.Time
}

// Client searches an archive and downloads products from it.
type Client interface {
	// Search returns the products matching q.
	Search(ctx context.Context, q Query) ([]Result, error)
	// Download fetches one product into dir and returns the local path.
	Download(ctx context.Context, r Result, dir string) (string, error)
}

// Buckets returns the bucket names a query has to search, one per
// instrument, named {mission}-{instrument} with a dev- prefix for
// development buckets.
func Buckets(m config.Mission, q Query) []string {
	prefix := ""
	if q.Development {
		prefix = "dev-"
	}
	if q.Instrument != "" {
		if inst, ok := m.Instrument(q.Instrument); ok {
			return []string{prefix + m.Name + "-" + strings.ToLower(inst.Name)}
		}
	}
	out := make([]string, 0, len(m.Instruments))
	for _, inst := range m.Instruments {
		out = append(out, prefix+m.Name+"-"+strings.ToLower(inst.Name))
	}
	return out
}

// Prefixes returns one {level}/{yyyy}/{mm}/ key prefix per level per
// month touched by the time range, in month-major order.
func Prefixes(levels []string, start, end time.Time) []string {
	var out []string
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		for _, level := range levels {
			out = append(out, fmt.Sprintf("%s/%04d/%02d/", level, cur.Year(), int(cur.Month())))
		}
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// normalize fills query defaults against the mission profile and rejects
// unknown data levels.
func normalize(m config.Mission, q Query) (Query, error) {
	if len(q.Levels) == 0 {
		q.Levels = m.ValidDataLevels
	} else {
		for _, level := range q.Levels {
			if !m.ValidLevel(level) {
				return Query{}, fmt.Errorf("invalid data level: %s", level)
			}
		}
	}
	if q.StartTime.IsZero() {
		q.StartTime = defaultStartTime
	}
	if q.EndTime.IsZero() {
		q.EndTime = time.Now().UTC()
	}
	return q, nil
}

// inWindow reports whether a parsed result falls inside the query's time
// range. Unparsed results pass; the prefix search already scoped them.
func inWindow(q Query, r Result) bool {
	if !r.Parsed {
		return true
	}
	t := r.Fields.Time
	return !t.Before(q.StartTime) && !t.After(q.EndTime)
}

// matchInstrument reports whether a parsed result belongs to the queried
// instrument. Alias forms resolve through the mission profile.
func matchInstrument(m config.Mission, q Query, r Result) bool {
	if q.Instrument == "" || !r.Parsed {
		return true
	}
	inst, ok := m.Instrument(q.Instrument)
	if !ok {
		return true
	}
	return strings.EqualFold(r.Fields.Instrument, inst.Name)
}

// matchLevel reports whether a parsed result carries one of the queried
// levels.
func matchLevel(q Query, r Result) bool {
	if !r.Parsed {
		return true
	}
	for _, level := range q.Levels {
		if r.Fields.Level == level {
			return true
		}
	}
	return false
}

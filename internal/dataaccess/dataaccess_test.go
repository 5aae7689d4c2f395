package dataaccess

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swxlab/swxkit/internal/config"
	"github.com/swxlab/swxkit/internal/filename"
	"github.com/swxlab/swxkit/internal/logger"
)

func testMission(t *testing.T) config.Mission {
	t.Helper()
	return config.Default().Mission
}

func TestBuckets(t *testing.T) {
	m := testMission(t)

	assert.Equal(t, []string{
		"swxsoc-eea", "swxsoc-merit", "swxsoc-nemisis", "swxsoc-spani",
	}, Buckets(m, Query{}))

	assert.Equal(t, []string{"swxsoc-eea"}, Buckets(m, Query{Instrument: "EEA"}))
	assert.Equal(t, []string{"dev-swxsoc-eea"},
		Buckets(m, Query{Instrument: "eea", Development: true}))

	// An unknown instrument widens to every bucket.
	assert.Len(t, Buckets(m, Query{Instrument: "nosuch"}), 4)
}

func TestPrefixes(t *testing.T) {
	start := time.Date(2024, 11, 15, 8, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{
		"l1/2024/11/", "ql/2024/11/",
		"l1/2024/12/", "ql/2024/12/",
		"l1/2025/01/", "ql/2025/01/",
	}, Prefixes([]string{"l1", "ql"}, start, end))

	// A range inside one month yields one prefix per level.
	assert.Equal(t, []string{"l2/2024/04/"},
		Prefixes([]string{"l2"}, start.AddDate(0, -7, 0), start.AddDate(0, -7, 3)))
}

func TestNormalizeQuery(t *testing.T) {
	m := testMission(t)

	q, err := normalize(m, Query{})
	require.NoError(t, err)
	assert.Equal(t, m.ValidDataLevels, q.Levels)
	assert.False(t, q.StartTime.IsZero())
	assert.False(t, q.EndTime.IsZero())

	_, err = normalize(m, Query{Levels: []string{"l9"}})
	assert.EqualError(t, err, "invalid data level: l9")
}

func writeProduct(t *testing.T, m config.Mission, dir, instrument string,
	at time.Time, level, version string) string {

	t.Helper()
	name, err := filename.Create(m, instrument, at, level, version, "", "", false)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("product data"), 0o644))
	return name
}

func TestDirClientSearch(t *testing.T) {
	m := testMission(t)
	root := t.TempDir()

	inside := writeProduct(t, m, root,
		"eea", time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC), "l1", "1.0.0")
	writeProduct(t, m, root,
		"eea", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), "l1", "1.0.0")
	writeProduct(t, m, root,
		"merit", time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC), "l2", "1.0.0")
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	c := NewDirClient(root, m, logger.Nop())
	results, err := c.Search(context.Background(), Query{
		Instrument: "eea",
		Levels:     []string{"l1"},
		StartTime:  time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, inside, r.Key)
	assert.True(t, r.Parsed)
	assert.Equal(t, "eea", r.Fields.Instrument)
	assert.Equal(t, "l1", r.Fields.Level)
	assert.Equal(t, "1.0.0", r.Fields.Version)
	assert.Equal(t, int64(len("product data")), r.Size)
	assert.NotEmpty(t, r.ETag)
}

func TestDirClientDownload(t *testing.T) {
	m := testMission(t)
	root := t.TempDir()
	name := writeProduct(t, m, root,
		"eea", time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC), "l1", "1.0.0")

	c := NewDirClient(root, m, logger.Nop())
	dest := t.TempDir()
	local, err := c.Download(context.Background(), Result{Key: name}, dest)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, name), local)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "product data", string(data))

	_, err = c.Download(context.Background(), Result{Key: "missing.cdf"}, dest)
	assert.Error(t, err)
}

func TestFetcherCachesDownloads(t *testing.T) {
	m := testMission(t)
	root := t.TempDir()
	writeProduct(t, m, root,
		"eea", time.Date(2024, 4, 6, 12, 6, 21, 0, time.UTC), "l1", "1.0.0")
	writeProduct(t, m, root,
		"eea", time.Date(2024, 4, 6, 12, 6, 24, 0, time.UTC), "l1", "1.0.0")

	c := NewDirClient(root, m, logger.Nop())
	results, err := c.Search(context.Background(), Query{Instrument: "eea"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	f := NewFetcher(c, 2, t.TempDir(), logger.Nop())
	first, err := f.Fetch(context.Background(), FetchRequest{Results: results})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Downloads)
	assert.Equal(t, 0, first.CacheHits)
	assert.Empty(t, first.Errors)
	assert.Len(t, first.LocalPaths, 2)

	second, err := f.Fetch(context.Background(), FetchRequest{Results: results})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Downloads)
	assert.Equal(t, 2, second.CacheHits)
}

func TestFetcherRejectsMismatchedPriority(t *testing.T) {
	f := NewFetcher(NewDirClient(t.TempDir(), testMission(t), logger.Nop()),
		1, "", logger.Nop())
	_, err := f.Fetch(context.Background(), FetchRequest{
		Results:  []Result{{Key: "a"}, {Key: "b"}},
		Priority: []int{0},
	})
	assert.Error(t, err)
}

package dataaccess

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Fetcher downloads batches of products in parallel with bounded
// concurrency. Products already present in the cache directory are not
// fetched again.
type Fetcher struct {
	client      Client
	concurrency int
	cacheDir    string
	log         zerolog.Logger
}

// FetchRequest names the products to fetch, with an optional priority
// per product (0 first, then 1, and so on).
type FetchRequest struct {
	Results  []Result
	Priority []int
}

// FetchResult is the outcome of a batch fetch.
type FetchResult struct {
	// LocalPaths maps object key to local path for every product that is
	// now on disk, fetched or cached.
	LocalPaths map[string]string
	Errors     map[string]error
	CacheHits  int
	Downloads  int
}

// NewFetcher builds a fetcher over client. Downloads land in cacheDir;
// an empty cacheDir uses the working directory and disables caching.
func NewFetcher(client Client, concurrency int, cacheDir string, log zerolog.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		client:      client,
		concurrency: concurrency,
		cacheDir:    cacheDir,
		log:         log.With().Str("component", "dataaccess").Logger(),
	}
}

// Fetch downloads the requested products, highest priority first.
// Per-product failures land in the result's Errors map; only a malformed
// request fails the call itself.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	out := &FetchResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}
	if len(req.Results) == 0 {
		return out, nil
	}

	priority := req.Priority
	if len(priority) == 0 {
		priority = make([]int, len(req.Results))
	} else if len(priority) != len(req.Results) {
		return nil, fmt.Errorf("priority length %d does not match result count %d",
			len(priority), len(req.Results))
	}

	type job struct {
		result   Result
		priority int
	}
	jobs := make([]job, len(req.Results))
	for i, r := range req.Results {
		jobs[i] = job{result: r, priority: priority[i]}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].priority < jobs[j].priority
	})

	var queue []Result
	for _, j := range jobs {
		if f.cacheDir != "" {
			local := filepath.Join(f.cacheDir, path.Base(j.result.Key))
			if _, err := os.Stat(local); err == nil {
				out.LocalPaths[j.result.Key] = local
				out.CacheHits++
				continue
			}
		}
		queue = append(queue, j.result)
	}

	dir := f.cacheDir
	if dir == "" {
		dir = "."
	}

	sem := semaphore.NewWeighted(int64(f.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, r := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			out.Errors[r.Key] = err
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(r Result) {
			defer sem.Release(1)
			defer wg.Done()

			local, err := f.client.Download(ctx, r, dir)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Errors[r.Key] = err
				return
			}
			out.LocalPaths[r.Key] = local
			out.Downloads++
		}(r)
	}
	wg.Wait()

	f.log.Info().
		Int("downloads", out.Downloads).
		Int("cache_hits", out.CacheHits).
		Int("failures", len(out.Errors)).
		Msg("batch fetch complete")
	return out, nil
}

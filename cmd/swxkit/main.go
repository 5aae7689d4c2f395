// Package main implements the swxkit command line tool: validate
// container files, print metadata templates, inspect files, and fetch
// products from the archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/swxlab/swxkit/internal/catalog"
	"github.com/swxlab/swxkit/internal/config"
	"github.com/swxlab/swxkit/internal/container"
	"github.com/swxlab/swxkit/internal/dataaccess"
	"github.com/swxlab/swxkit/internal/logger"
	"github.com/swxlab/swxkit/internal/schema"
	"github.com/swxlab/swxkit/internal/validation"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		mode        string
		instrument  string
		levels      string
		startStr    string
		endStr      string
		development bool
		downloadDir string
		catalogPath string
		concurrency int
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to a mission configuration file (YAML)")
	flag.StringVar(&mode, "mode", "validate", "Operation: validate, template, info, fetch")
	flag.StringVar(&instrument, "instrument", "", "Instrument to fetch (fetch mode)")
	flag.StringVar(&levels, "level", "", "Comma-separated data levels to fetch (fetch mode)")
	flag.StringVar(&startStr, "start", "", "Start of the time window, RFC 3339 or YYYY-MM-DD (fetch mode)")
	flag.StringVar(&endStr, "end", "", "End of the time window, RFC 3339 or YYYY-MM-DD (fetch mode)")
	flag.BoolVar(&development, "dev", false, "Search the development buckets (fetch mode)")
	flag.StringVar(&downloadDir, "dir", ".", "Download directory (fetch mode)")
	flag.StringVar(&catalogPath, "catalog", "", "Path to the product ledger database (fetch mode)")
	flag.IntVar(&concurrency, "concurrency", 4, "Parallel downloads (fetch mode)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "swxkit - space weather data toolkit\n\n")
		fmt.Fprintf(os.Stderr, "Usage: swxkit [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  swxkit -mode validate swxsoc_eea_l1_20240406T120621_v0.1.0.cdf\n")
		fmt.Fprintf(os.Stderr, "  swxkit -mode template\n")
		fmt.Fprintf(os.Stderr, "  swxkit -mode fetch -instrument eea -level l1 -start 2024-04-01 -end 2024-05-01\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s      Mission to operate as\n", config.EnvMission)
		fmt.Fprintf(os.Stderr, "  %s       Path to a mission configuration file\n", config.EnvConfigFile)
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("swxkit version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if configFile != "" {
		os.Setenv(config.EnvConfigFile, configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: %v\n", err)
		os.Exit(2)
	}
	log := logger.Setup(cfg.Logger)

	s, err := schema.New(schema.Options{
		UseDefaults: true,
		Mission:     cfg.Mission,
		Logger:      log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: %v\n", err)
		os.Exit(2)
	}

	switch mode {
	case "validate":
		os.Exit(runValidate(s, flag.Args()))
	case "template":
		os.Exit(runTemplate(s))
	case "info":
		os.Exit(runInfo(s, flag.Args()))
	case "fetch":
		os.Exit(runFetch(fetchOptions{
			cfg:         cfg,
			log:         log,
			instrument:  instrument,
			levels:      levels,
			start:       startStr,
			end:         endStr,
			development: development,
			dir:         downloadDir,
			catalogPath: catalogPath,
			concurrency: concurrency,
		}))
	default:
		fmt.Fprintf(os.Stderr, "swxkit: unknown mode %q\n", mode)
		flag.Usage()
		os.Exit(2)
	}
}

// runValidate checks each file and prints its violations. The exit code
// is nonzero when any file has violations.
func runValidate(s *schema.Schema, files []string) int {
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "swxkit: validate needs at least one file")
		return 2
	}

	total := 0
	for _, path := range files {
		violations := validation.ValidateFile(path, s)
		if len(violations) == 0 {
			fmt.Printf("%s: compliant\n", path)
			continue
		}
		total += len(violations)
		fmt.Printf("%s: %d violation(s)\n", path, len(violations))
		for _, v := range violations {
			fmt.Printf("  %s\n", v)
		}
	}

	if total > 0 {
		return 1
	}
	return 0
}

// runTemplate prints the attribute templates an instrument team fills in.
func runTemplate(s *schema.Schema) int {
	global, err := s.GlobalTemplate("", "", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: %v\n", err)
		return 2
	}

	fmt.Println("# Global attributes")
	printMeta(global, "")
	fmt.Println()
	fmt.Println("# Measurement attributes")
	printMeta(s.MeasurementTemplate(), "")
	return 0
}

// runInfo prints a summary of each container file.
func runInfo(s *schema.Schema, files []string) int {
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "swxkit: info needs at least one file")
		return 2
	}

	for _, path := range files {
		c, err := container.Load(path, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "swxkit: %s: %v\n", path, err)
			return 1
		}

		start, end := c.TimeRange()
		fmt.Printf("%s\n", path)
		fmt.Printf("  records: %d (%s to %s)\n", c.Len(),
			start.Format(time.RFC3339), end.Format(time.RFC3339))
		fmt.Printf("  variables:\n")
		for _, name := range c.Names() {
			v, _ := c.Variable(name)
			fmt.Printf("    %-24s %-12s shape=%v units=%s\n",
				name, c.RoleOf(v), v.Data.Shape(), v.Units)
		}
		fmt.Printf("  global attributes:\n")
		printMeta(c.GlobalMeta(), "    ")
	}
	return 0
}

type fetchOptions struct {
	cfg         *config.Config
	log         zerolog.Logger
	instrument  string
	levels      string
	start       string
	end         string
	development bool
	dir         string
	catalogPath string
	concurrency int
}

// runFetch searches the archive and downloads the matching products.
func runFetch(opts fetchOptions) int {
	ctx := context.Background()

	q := dataaccess.Query{
		Instrument:  opts.instrument,
		Development: opts.development,
	}
	if opts.levels != "" {
		q.Levels = strings.Split(opts.levels, ",")
	}

	var err error
	if q.StartTime, err = parseTimeFlag(opts.start); err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: bad -start: %v\n", err)
		return 2
	}
	if q.EndTime, err = parseTimeFlag(opts.end); err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: bad -end: %v\n", err)
		return 2
	}

	zlog := opts.log
	client, err := dataaccess.NewS3Client(ctx, opts.cfg.Mission, dataaccess.DefaultS3Options(), zlog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: %v\n", err)
		return 2
	}

	results, err := client.Search(ctx, q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: search failed: %v\n", err)
		return 1
	}
	fmt.Printf("found %d product(s)\n", len(results))
	if len(results) == 0 {
		return 0
	}

	var ledger *catalog.Catalog
	if opts.catalogPath != "" {
		ledger, err = catalog.Open(opts.catalogPath, zlog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "swxkit: %v\n", err)
			return 2
		}
		defer ledger.Close()
		if err := ledger.RecordSearch(ctx, results); err != nil {
			fmt.Fprintf(os.Stderr, "swxkit: %v\n", err)
			return 1
		}
	}

	fetcher := dataaccess.NewFetcher(client, opts.concurrency, opts.dir, zlog)
	outcome, err := fetcher.Fetch(ctx, dataaccess.FetchRequest{Results: results})
	if err != nil {
		fmt.Fprintf(os.Stderr, "swxkit: fetch failed: %v\n", err)
		return 1
	}

	for _, r := range results {
		local, ok := outcome.LocalPaths[r.Key]
		if !ok {
			continue
		}
		fmt.Printf("  %s\n", local)
		if ledger != nil {
			if err := ledger.RecordDownload(ctx, r.Bucket, r.Key, local); err != nil {
				fmt.Fprintf(os.Stderr, "swxkit: %v\n", err)
			}
		}
	}

	if len(outcome.Errors) > 0 {
		for key, ferr := range outcome.Errors {
			fmt.Fprintf(os.Stderr, "swxkit: %s: %v\n", key, ferr)
		}
		return 1
	}
	return 0
}

// parseTimeFlag accepts RFC 3339 timestamps or plain dates.
func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func printMeta(meta interface {
	Keys() []string
	Value(string) any
}, indent string) {
	for _, key := range meta.Keys() {
		value := meta.Value(key)
		if value == nil {
			fmt.Printf("%s%s: null\n", indent, key)
			continue
		}
		fmt.Printf("%s%s: %v\n", indent, key, value)
	}
}

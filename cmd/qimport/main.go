package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"qimport/internal/config"
	"qimport/internal/engine"
	"qimport/internal/metrics"
	"qimport/internal/parser/csv"
	"qimport/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "qimport/internal/storage/all"
)

// main wires one import run: config from env overridden by flags, parse the
// source, open the store, hand everything to the engine.
func main() {
	cfg := config.FromEnv()

	var (
		source      string
		headerRow   int
		mode        string
		dryRun      bool
		referential int
		driver      string
		batchSize   int
		validate    bool
	)

	flag.StringVar(&source, "source", cfg.SourcePath, "CSV export to import")
	flag.IntVar(&headerRow, "header-row", cfg.HeaderRow, "0-based row index of the header line")
	flag.StringVar(&mode, "mode", cfg.Mode, "import mode (replace or patch)")
	flag.BoolVar(&dryRun, "dry-run", cfg.DryRun, "run everything except the writes")
	flag.IntVar(&referential, "referential", cfg.ReferentialID, "target referential id (partition)")
	flag.StringVar(&driver, "driver", cfg.Store.Driver, "database driver (mysql, postgres, sqlite, mssql)")
	flag.IntVar(&batchSize, "batch-size", cfg.BatchSize, "writes per transaction commit")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg.SourcePath = source
	cfg.HeaderRow = headerRow
	cfg.Mode = mode
	cfg.DryRun = dryRun
	cfg.ReferentialID = referential
	cfg.Store.Driver = driver
	cfg.BatchSize = batchSize

	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	if os.Getenv("METRICS_BACKEND") == "log" {
		metrics.SetBackend(metrics.NewLogBackend("qimport"))
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}()
	}

	ctx := context.Background()
	start := time.Now()

	f, err := os.Open(cfg.SourcePath)
	if err != nil {
		fatalf("open source: %v", err)
	}
	recs, skipped, err := csv.NewParser(csv.Options{HeaderRow: cfg.HeaderRow, TrimSpace: true}).Parse(f)
	f.Close()
	if err != nil {
		fatalf("parse %s: %v", cfg.SourcePath, err)
	}
	if *verbose {
		log.Printf("parsed %d rows from %s (%d malformed rows dropped)", len(recs), cfg.SourcePath, skipped)
	}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer store.Close()

	eng, err := engine.New(ctx, store, engine.Options{
		Mode:                cfg.Mode,
		ReferentialID:       cfg.ReferentialID,
		DefaultEconomicRole: cfg.DefaultEconomicRole,
		QuestionsTable:      cfg.QuestionsTable,
		ProcessTable:        cfg.ProcessTable,
		BatchSize:           cfg.BatchSize,
		DryRun:              cfg.DryRun,
	})
	if err != nil {
		fatalf("%v", err)
	}

	counters, err := eng.Run(ctx, recs)
	if err != nil {
		log.Fatalf("%v", err)
	}

	counters.Log(cfg.Mode, cfg.DryRun)
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

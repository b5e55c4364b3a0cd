package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/peakline/internal/api"
	"github.com/banshee-data/peakline/internal/config"
	"github.com/banshee-data/peakline/internal/peaks"
	"github.com/banshee-data/peakline/internal/store"
	"github.com/banshee-data/peakline/internal/survey"
	"github.com/banshee-data/peakline/internal/version"
)

var (
	surveyPath = flag.String("survey", "", "Station CSV file (line,x,y,channel columns)")
	groupsPath = flag.String("groups", "", "Property group JSON sidecar (optional; defaults to one group of all channels)")
	paramsPath = flag.String("params", "", "Detection parameter JSON file (optional)")
	dbPath     = flag.String("db", "peakline.db", "Results database path")
	linesFlag  = flag.String("lines", "", "Comma-separated line ids to process (default: all)")
	workers    = flag.Int("workers", runtime.NumCPU(), "Worker goroutines for line processing")
	listen     = flag.String("listen", ":8080", "Listen address (with -serve)")
	serve      = flag.Bool("serve", false, "Serve the HTTP API instead of running a batch detection")
)

func main() {
	// The migrate subcommand bypasses the normal flag set so schema changes
	// can run without loading a survey.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		fs := flag.NewFlagSet("migrate", flag.ExitOnError)
		migrateDB := fs.String("db", "peakline.db", "Results database path")
		fs.Parse(os.Args[2:])
		store.RunMigrateCommand(fs.Args(), *migrateDB)
		return
	}

	flag.Parse()
	log.Printf("peakline %s", version.String())

	if *surveyPath == "" {
		log.Fatal("Survey file is required (-survey)")
	}

	s, err := survey.LoadCSV(*surveyPath)
	if err != nil {
		log.Fatalf("Failed to load survey: %v", err)
	}
	log.Printf("Loaded survey: %d stations, %d channels, %d lines",
		s.NumStations(), len(s.Channels()), len(s.LineIDs()))

	if *groupsPath != "" {
		if err := survey.LoadPropertyGroups(s, *groupsPath); err != nil {
			log.Fatalf("Failed to load property groups: %v", err)
		}
	} else {
		names := make([]string, 0, len(s.Channels()))
		for _, ch := range s.Channels() {
			names = append(names, ch.Name)
		}
		if _, err := s.AddPropertyGroup("all", "#000000", names); err != nil {
			log.Fatalf("Failed to build default property group: %v", err)
		}
	}

	cfg := config.EmptyDetectionConfig()
	if *paramsPath != "" {
		cfg, err = config.LoadDetectionConfig(*paramsPath)
		if err != nil {
			log.Fatalf("Failed to load detection config: %v", err)
		}
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open results database: %v", err)
	}
	defer st.Close()

	if *serve {
		runServer(s, st, cfg)
		return
	}
	runBatch(s, st, cfg)
}

// runBatch detects, persists and summarizes in one pass, then exits.
func runBatch(s *survey.Survey, st *store.Store, cfg *config.DetectionConfig) {
	driver, err := peaks.NewDriver(s, cfg.Params())
	if err != nil {
		log.Fatalf("Invalid detection parameters: %v", err)
	}

	lineIDs, err := parseLines(*linesFlag, s)
	if err != nil {
		log.Fatalf("Bad -lines value: %v", err)
	}

	parts := make(map[int][][]int, len(lineIDs))
	for _, id := range lineIDs {
		parts[id] = s.Parts(s.LineIndices(id), cfg.GetMaxPartGap())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startAt := time.Now()
	results, err := peaks.Run(ctx, driver.ComputeLines(parts), *workers)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	for _, r := range results {
		if err := st.SaveLineResult(ctx, r); err != nil {
			log.Fatalf("Failed to save line %d part %d: %v", r.LineID, r.Part, err)
		}
		log.Printf("line %d part %d: %d groups", r.LineID, r.Part, len(r.Groups))
	}

	sum, err := st.Summarize(ctx)
	if err != nil {
		log.Fatalf("Failed to summarize results: %v", err)
	}
	log.Printf("Done in %s: %d lines, %d parts, %d groups, %d anomalies stored",
		time.Since(startAt).Round(time.Millisecond), sum.Lines, sum.Parts, sum.Groups, sum.Anomalies)
}

// runServer blocks serving the HTTP API until SIGINT/SIGTERM.
func runServer(s *survey.Survey, st *store.Store, cfg *config.DetectionConfig) {
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	srv := &http.Server{
		Addr:    *listen,
		Handler: api.WithLogging(api.NewServer(s, st, cfg, *workers).Routes()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Serving API on %s", *listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// parseLines resolves the -lines flag to line ids, defaulting to every line.
func parseLines(value string, s *survey.Survey) ([]int, error) {
	if value == "" {
		return s.LineIDs(), nil
	}
	var ids []int
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid line id %q", part)
		}
		if len(s.LineIndices(id)) == 0 {
			return nil, fmt.Errorf("line %d not present in survey", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/internal/service"
	"github.com/noah-isme/timetable-engine/pkg/database"
	"github.com/noah-isme/timetable-engine/pkg/export"
	"github.com/noah-isme/timetable-engine/pkg/logger"
	"github.com/noah-isme/timetable-engine/pkg/storage"
)

type options struct {
	snapshot     string
	alternatives int
	seed         int64
	timeout      time.Duration
	workers      int
	format       string
	outDir       string
	store        string
	publish      bool
	logLevel     string
}

func main() {
	var opts options
	flag.StringVar(&opts.snapshot, "snapshot", "snapshot.yaml", "Path to the YAML master data snapshot")
	flag.IntVar(&opts.alternatives, "alternatives", 3, "Number of alternatives to return")
	flag.Int64Var(&opts.seed, "seed", 0, "Base seed; the same seed and snapshot reproduce the same alternatives")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall generation timeout")
	flag.IntVar(&opts.workers, "workers", 0, "Concurrent search runs (0 uses every CPU)")
	flag.StringVar(&opts.format, "format", "", "Export the best alternative as csv or pdf")
	flag.StringVar(&opts.outDir, "out", "./exports", "Directory for exported files")
	flag.StringVar(&opts.store, "store", "", "SQLite file to save the best alternative into")
	flag.BoolVar(&opts.publish, "publish", false, "Publish the saved alternative instead of keeping it as a draft")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("timetable-cli: %v", err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	logr, err := logger.NewCLI(opts.logLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	snapshot, err := loadSnapshot(opts.snapshot)
	if err != nil {
		return err
	}

	generator, closeStore, err := newGenerator(opts, logr)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	resp, err := generator.Generate(ctx, requestFor(snapshot, opts))
	if err != nil {
		var diagnostic *models.InfeasibilityDiagnostic
		if errors.As(err, &diagnostic) {
			printDiagnostic(out, diagnostic)
		}
		return err
	}
	printAlternatives(out, resp)

	best := resp.Alternatives[0]
	if opts.format != "" {
		exporter := service.NewExportService(generator, logr, export.NewCSVExporter(), export.NewPDFExporter())
		result, err := exporter.Export(ctx, best.ID, dto.ExportQuery{Format: opts.format})
		if err != nil {
			return err
		}
		files, err := storage.NewLocalStorage(opts.outDir)
		if err != nil {
			return err
		}
		path, err := files.Save(result.Filename, result.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nexported %s\n", path)
	}

	if opts.store != "" {
		record, err := generator.Save(ctx, best.ID, dto.SaveAlternativeRequest{Publish: opts.publish})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s as version %d (%s) in %s\n", record.ID, record.Version, record.Status, opts.store)
	}
	return nil
}

// loadSnapshot reads master data in the same shape the HTTP API accepts.
func loadSnapshot(path string) (*scheduler.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot scheduler.Snapshot
	if err := yaml.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snapshot, nil
}

func requestFor(snapshot *scheduler.Snapshot, opts options) dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		Grid:         snapshot.Grid,
		Faculty:      snapshot.Faculty,
		Rooms:        snapshot.Rooms,
		Subjects:     snapshot.Subjects,
		Batches:      snapshot.Batches,
		Constraints:  snapshot.Constraints,
		Alternatives: opts.alternatives,
		Seed:         opts.seed,
		NoCache:      true,
	}
}

func newGenerator(opts options, logr *zap.Logger) (*service.TimetableGeneratorService, func(), error) {
	cfg := service.TimetableGeneratorConfig{
		DefaultAlternatives: opts.alternatives,
		MaxAlternatives:     opts.alternatives,
		Workers:             opts.workers,
		RunTimeout:          opts.timeout,
	}
	validate := validator.New()
	if opts.store == "" {
		return service.NewTimetableGeneratorService(nil, nil, nil, nil, nil, validate, logr, cfg), func() {}, nil
	}

	db, err := database.NewSQLite(opts.store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := database.EnsureSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	generator := service.NewTimetableGeneratorService(
		repository.NewTimetableRepository(db),
		repository.NewPlacementRepository(db),
		db,
		nil,
		nil,
		validate,
		logr,
		cfg,
	)
	return generator, func() { _ = db.Close() }, nil
}

func printAlternatives(out io.Writer, resp *dto.GenerateTimetableResponse) {
	fmt.Fprintf(out, "%d sessions, fingerprint %s\n\n", resp.Sessions, resp.Fingerprint)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tSCORE\tSEED\tROOM UTIL\tLOAD VAR\tCONFLICTS\tID")
	for i, alt := range resp.Alternatives {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%d\t%.1f%%\t%.2f\t%d\t%s\n",
			i+1, alt.Name, alt.Score, alt.Seed,
			alt.Metrics.RoomUtilization, alt.Metrics.FacultyLoadVariance,
			len(alt.Conflicts), alt.ID)
	}
	_ = w.Flush()
}

func printDiagnostic(out io.Writer, diagnostic *models.InfeasibilityDiagnostic) {
	fmt.Fprintln(out, "input is infeasible:")
	for _, cause := range diagnostic.Causes {
		fmt.Fprintf(out, "  - %s %s: %s\n", cause.Kind, cause.EntityID, cause.Message)
	}
}

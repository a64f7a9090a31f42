package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/nmdscan/internal/annotation"
	"github.com/inodb/nmdscan/internal/events"
	"github.com/inodb/nmdscan/internal/genome"
	"github.com/inodb/nmdscan/internal/metrics"
	"github.com/inodb/nmdscan/internal/output"
	"github.com/inodb/nmdscan/internal/pipeline"
	"github.com/inodb/nmdscan/internal/resultdb"
)

// session holds the stores and sinks shared by every analysis of one invocation.
type session struct {
	logger  *zap.Logger
	workers int

	annotation *annotation.Store
	genome     *genome.Store
	driver     *pipeline.Driver

	metrics     *metrics.RunMetrics
	metricsFile string
	results     *resultdb.Store
}

// openSession loads the annotation and genome named by the configuration
// and opens the optional result database and metrics registry.
func (a *app) openSession() (*session, error) {
	gtfPath := viper.GetString(keyGTF)
	fastaPath := viper.GetString(keyFASTA)
	if gtfPath == "" || fastaPath == "" {
		assembly := viper.GetString(keyAssembly)
		gtf, fasta := findGENCODEFiles(defaultGENCODEPath(assembly))
		if gtfPath == "" {
			gtfPath = gtf
		}
		if fastaPath == "" {
			fastaPath = fasta
		}
		if gtfPath == "" || fastaPath == "" {
			return nil, usageErrorf("--gtf and --fasta are required (or run 'nmdscan download --assembly %s')", assembly)
		}
	}

	workers := viper.GetInt(keyWorkers)
	if workers < 1 {
		return nil, usageErrorf("--workers must be at least 1, got %d", workers)
	}

	s := &session{logger: a.logger, workers: workers}

	start := time.Now()
	ann, hit, err := annotation.LoadOrBuild(gtfPath, viper.GetString(keyCacheDir), a.logger)
	if err != nil {
		return nil, fmt.Errorf("load annotation: %w", err)
	}
	s.annotation = ann
	a.logger.Info("annotation loaded",
		zap.String("gtf", gtfPath),
		zap.Bool("cache_hit", hit),
		zap.Int("genes", ann.GeneCount()),
		zap.Int("transcripts", ann.TranscriptCount()),
		zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	g, err := genome.Load(fastaPath)
	if err != nil {
		return nil, fmt.Errorf("load genome: %w", err)
	}
	s.genome = g
	a.logger.Info("genome loaded",
		zap.String("fasta", fastaPath),
		zap.Int("chromosomes", len(g.Chromosomes())),
		zap.Duration("elapsed", time.Since(start)))

	s.driver = pipeline.NewDriver(ann, g)
	s.driver.SetLogger(a.logger)

	if s.metricsFile = viper.GetString(keyMetricsFile); s.metricsFile != "" {
		m, err := metrics.NewRunMetrics(prometheus.NewRegistry())
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		s.metrics = m
		s.driver.SetMetrics(m)
	}

	if dbPath := viper.GetString(keyResultsDB); dbPath != "" {
		db, err := resultdb.Open(dbPath)
		if err != nil {
			return nil, err
		}
		s.results = db
	}

	return s, nil
}

// analyze runs one dataset and splice type and writes its tables into outDir.
func (s *session) analyze(ctx context.Context, ds events.Dataset, st events.SpliceType, outDir string) (*pipeline.Report, error) {
	run := resultdb.NewRun(ds.Name, st)

	evs, err := ds.EventsFor(st)
	if err != nil {
		return nil, err
	}

	report, err := s.driver.Run(ctx, st, evs, s.workers)
	if err != nil {
		return nil, err
	}

	paths, err := output.WriteReport(outDir, report)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	if s.results != nil {
		if err := s.results.WriteReport(ctx, run, report); err != nil {
			return nil, err
		}
	}

	s.logger.Info("results written",
		zap.String("dataset", ds.Name),
		zap.String("splice_type", string(st)),
		zap.String("run_id", run.ID),
		zap.Strings("files", relativePaths(outDir, paths)),
		zap.Int("missing_genes", len(report.MissingGenes)))
	return report, nil
}

// Close flushes metrics and closes the result database.
func (s *session) Close() error {
	var errs []error
	if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}
	if s.results != nil {
		if err := s.results.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close results database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func relativePaths(dir string, paths []string) []string {
	rel := make([]string, len(paths))
	for i, p := range paths {
		if r, err := filepath.Rel(dir, p); err == nil {
			rel[i] = r
		} else {
			rel[i] = p
		}
	}
	return rel
}

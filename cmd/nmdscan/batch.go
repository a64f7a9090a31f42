package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/nmdscan/internal/events"
	"github.com/inodb/nmdscan/internal/output"
)

// batchJob is one dataset and splice type of a batch.
type batchJob struct {
	dataset    events.Dataset
	spliceType events.SpliceType
	outDir     string
}

func (a *app) batchCommand() *cobra.Command {
	var (
		datasetsDir   string
		singleDataset string
		outputDir     string
		spliceTypes   []string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze every splice type of one or more rMATS datasets",
		Long: `Analyze each dataset sub-directory of --dataset-dir (or the single dataset
given by --single-dataset) for every splice type. Results go to
<output-dir>/<dataset>/<TYPE>/. Combinations whose results file already exists
are skipped, so an interrupted batch can be resumed.`,
		Example: `  nmdscan batch --gtf gencode.gtf.gz --fasta GRCh38.fa.gz --dataset-dir rmats -o results
  nmdscan batch --single-dataset rmats/sample1 --splice-types SE,RI -o results`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (datasetsDir == "") == (singleDataset == "") {
				return usageErrorf("exactly one of --dataset-dir or --single-dataset is required")
			}
			if outputDir == "" {
				return usageErrorf("--output-dir is required")
			}

			types, err := parseSpliceTypes(spliceTypes)
			if err != nil {
				return &usageError{err: err}
			}

			var datasets []events.Dataset
			if singleDataset != "" {
				datasets = []events.Dataset{events.NewDataset(singleDataset)}
			} else if datasets, err = events.Discover(datasetsDir); err != nil {
				return err
			}

			jobs := a.pendingJobs(datasets, types, outputDir)
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do: all results exist")
				return nil
			}

			s, err := a.openSession()
			if err != nil {
				return err
			}

			var failed int
			for _, job := range jobs {
				if err := cmd.Context().Err(); err != nil {
					s.Close()
					return err
				}
				if _, err := s.analyze(cmd.Context(), job.dataset, job.spliceType, job.outDir); err != nil {
					failed++
					a.logger.Error("analysis failed",
						zap.String("dataset", job.dataset.Name),
						zap.String("splice_type", string(job.spliceType)),
						zap.Error(err))
				}
			}

			if err := s.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %d of %d analyses\n", len(jobs)-failed, len(jobs))
			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(jobs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetsDir, "dataset-dir", "", "Directory whose sub-directories are rMATS datasets")
	cmd.Flags().StringVar(&singleDataset, "single-dataset", "", "Analyze only this rMATS dataset directory")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Root directory for the result tables")
	cmd.Flags().StringSliceVar(&spliceTypes, "splice-types", nil, "Splice types to analyze (default all)")
	return cmd
}

// pendingJobs lists the combinations that still lack a results file.
func (a *app) pendingJobs(datasets []events.Dataset, types []events.SpliceType, outputDir string) []batchJob {
	var jobs []batchJob
	for _, ds := range datasets {
		for _, st := range types {
			outDir := filepath.Join(outputDir, ds.Name, string(st))
			if _, err := os.Stat(filepath.Join(outDir, output.ResultsFile)); err == nil {
				a.logger.Info("results exist, skipping",
					zap.String("dataset", ds.Name),
					zap.String("splice_type", string(st)))
				continue
			}
			jobs = append(jobs, batchJob{dataset: ds, spliceType: st, outDir: outDir})
		}
	}
	return jobs
}

func parseSpliceTypes(names []string) ([]events.SpliceType, error) {
	if len(names) == 0 {
		return events.AllSpliceTypes, nil
	}
	types := make([]events.SpliceType, 0, len(names))
	for _, n := range names {
		st, err := events.ParseSpliceType(n)
		if err != nil {
			return nil, err
		}
		types = append(types, st)
	}
	return types, nil
}

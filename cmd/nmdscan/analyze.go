package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/nmdscan/internal/events"
)

func (a *app) analyzeCommand() *cobra.Command {
	var (
		datasetDir string
		spliceType string
		outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one splice type of one rMATS dataset",
		Long: `Analyze the filtered events of one splice type against every transcript of
their gene. Writes orf_disruption_results.csv and, when any event exon is not an
exon of a transcript, skipped_transcripts_log.csv into the output directory.`,
		Example: `  nmdscan analyze --gtf gencode.gtf.gz --fasta GRCh38.fa.gz \
    --dataset-dir rmats/sample1 --splice-type SE --output-dir results/sample1/SE`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if datasetDir == "" || outputDir == "" || spliceType == "" {
				return usageErrorf("--dataset-dir, --splice-type and --output-dir are required")
			}
			st, err := events.ParseSpliceType(spliceType)
			if err != nil {
				return &usageError{err: err}
			}

			s, err := a.openSession()
			if err != nil {
				return err
			}
			report, err := s.analyze(cmd.Context(), events.NewDataset(datasetDir), st, outputDir)
			if cerr := s.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d events, %d results, %d skipped, %d failed, %d genes not found\n",
				st, report.Events, len(report.Results), len(report.Skips), report.Failed, len(report.MissingGenes))
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetDir, "dataset-dir", "", "rMATS output directory")
	cmd.Flags().StringVar(&spliceType, "splice-type", "", "Splice type: SE, RI, MXE, A3SS or A5SS")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the result tables")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/nmdscan/internal/events"
)

func (a *app) filterCommand() *cobra.Command {
	var (
		input      string
		outputPath string
		datasetDir string
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter rMATS junction-count tables by FDR and dPSI",
		Long: `Keep the events of a raw rMATS *.MATS.JC.txt table whose FDR is below --fdr
and whose absolute IncLevelDifference is at least --dpsi.

With --input the filtered table is written to --output (default stdout). With
--dataset-dir every {TYPE}.MATS.JC.txt of the dataset is filtered into
{TYPE}.MATS.JC.filtered.txt next to it.`,
		Example: `  nmdscan filter --input SE.MATS.JC.txt --output SE.MATS.JC.filtered.txt
  nmdscan filter --dataset-dir rmats/sample1 --fdr 0.05 --dpsi 0.1`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (input == "") == (datasetDir == "") {
				return usageErrorf("exactly one of --input or --dataset-dir is required")
			}
			maxFDR, minDPSI := viper.GetFloat64(keyFDR), viper.GetFloat64(keyDPSI)

			if input != "" {
				stats, err := filterFile(input, outputPath, cmd.OutOrStdout(), maxFDR, minDPSI)
				if err != nil {
					return err
				}
				a.logger.Info("filtered events",
					zap.String("input", input),
					zap.Int("total", stats.Total),
					zap.Int("kept", stats.Kept))
				return nil
			}

			ds := events.NewDataset(datasetDir)
			var filtered int
			for _, st := range events.AllSpliceTypes {
				raw := ds.RawPath(st)
				if _, err := os.Stat(raw); err != nil {
					a.logger.Debug("no raw table", zap.String("splice_type", string(st)), zap.String("path", raw))
					continue
				}
				stats, err := filterFile(raw, ds.FilteredPath(st), nil, maxFDR, minDPSI)
				if err != nil {
					return fmt.Errorf("%s: %w", st, err)
				}
				filtered++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: kept %d of %d events\n", st, stats.Kept, stats.Total)
			}
			if filtered == 0 {
				return fmt.Errorf("no *.MATS.JC.txt tables found in %s", datasetDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Raw rMATS table (plain or gzipped)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Filtered table (default stdout)")
	cmd.Flags().StringVar(&datasetDir, "dataset-dir", "", "Filter every splice type of this rMATS dataset")
	cmd.Flags().Float64("fdr", events.DefaultMaxFDR, "Keep events with FDR below this value")
	cmd.Flags().Float64("dpsi", events.DefaultMinDPSI, "Keep events with |IncLevelDifference| at least this value")
	bindFlags(cmd.Flags(), map[string]string{keyFDR: "fdr", keyDPSI: "dpsi"})
	return cmd
}

// filterFile filters input into outputPath, or into stdout when outputPath is empty.
func filterFile(input, outputPath string, stdout io.Writer, maxFDR, minDPSI float64) (events.FilterStats, error) {
	p, err := events.NewParser(input)
	if err != nil {
		return events.FilterStats{}, err
	}
	defer p.Close()

	if outputPath == "" {
		return events.Filter(p, stdout, maxFDR, minDPSI)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return events.FilterStats{}, fmt.Errorf("create output: %w", err)
	}
	stats, err := events.Filter(p, f, maxFDR, minDPSI)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outputPath)
	}
	return stats, err
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/nmdscan/internal/resultdb"
)

func (a *app) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List analyses stored in the results database",
		Example: `  nmdscan runs --results-db results.duckdb
  nmdscan runs nmd 3f2b9c1e-... --results-db results.duckdb`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openResultDB()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tDATASET\tTYPE\tSTARTED\tEVENTS\tRESULTS\tSKIPPED\tFAILED\tMISSING GENES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					r.ID, r.Dataset, r.SpliceType, r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Events, r.Results, r.Skips, r.Failed, r.MissingGenes)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "nmd <run-id>",
		Short: "List the likely NMD targets of a run",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openResultDB()
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := db.NMDCandidates(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GENE\tTRANSCRIPT\tEVENT\tEXON\tREF_AA\tALT_AA\tPTC\tJUNCTION\tDIRECTION")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\t%d\t%d\t%d\t%d\t%s\n",
					r.GeneID, r.TranscriptID, r.EventID, r.ExonStart, r.ExonEnd,
					r.RefLenAA, r.AltLenAA, r.PTCPosition, r.LastJunction, r.Direction)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func openResultDB() (*resultdb.Store, error) {
	path := viper.GetString(keyResultsDB)
	if path == "" {
		return nil, usageErrorf("--results-db is required")
	}
	return resultdb.Open(path)
}

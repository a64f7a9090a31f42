package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/nmdscan/internal/annotation"
)

func (a *app) indexCommand() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the parsed annotation cache",
		Long: `Parse the GTF once and store the gene models in --cache-dir, so later runs
with the same GTF skip parsing. The cache is rebuilt automatically when the GTF
changes; --rebuild forces it.`,
		Example: `  nmdscan index --gtf gencode.v44.annotation.gtf.gz --cache-dir ~/.cache/nmdscan`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gtfPath, dir := viper.GetString(keyGTF), viper.GetString(keyCacheDir)
			if gtfPath == "" || dir == "" {
				return usageErrorf("--gtf and --cache-dir are required")
			}

			if rebuild {
				annotation.NewIndexCache(dir).Clear()
			}
			s, hit, err := annotation.LoadOrBuild(gtfPath, dir, a.logger)
			if err != nil {
				return err
			}
			fp, err := annotation.StatFile(gtfPath)
			if err != nil {
				return err
			}
			ic := annotation.NewIndexCache(dir)
			if !ic.Valid(fp) {
				return fmt.Errorf("annotation cache was not written to %s", dir)
			}

			state := "built"
			if hit {
				state = "up to date"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Annotation cache %s: %d genes, %d transcripts (%s)\n",
				state, s.GeneCount(), s.TranscriptCount(), ic.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Rebuild the cache even if it is up to date")
	return cmd
}

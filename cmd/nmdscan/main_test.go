package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/nmdscan/internal/output"
)

// One gene on chr1 with a transcript carrying the cassette exon 41-60 and
// one skipping it.
const testGTF = "##description: test annotation\n" +
	"chr1\ttest\tgene\t1\t100\t.\t+\t.\tgene_id \"G1\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\ttranscript\t1\t100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; gene_name \"GENE1\"; transcript_type \"protein_coding\";\n" +
	"chr1\ttest\texon\t1\t30\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\texon\t41\t60\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\texon\t71\t100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\tCDS\t1\t30\t.\t+\t0\tgene_id \"G1\"; transcript_id \"T1\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\tCDS\t41\t60\t.\t+\t0\tgene_id \"G1\"; transcript_id \"T1\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\tCDS\t71\t100\t.\t+\t1\tgene_id \"G1\"; transcript_id \"T1\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\ttranscript\t1\t100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T2\"; gene_name \"GENE1\"; transcript_type \"protein_coding\";\n" +
	"chr1\ttest\texon\t1\t30\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T2\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\texon\t71\t100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T2\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\tCDS\t1\t30\t.\t+\t0\tgene_id \"G1\"; transcript_id \"T2\"; gene_name \"GENE1\";\n" +
	"chr1\ttest\tCDS\t71\t100\t.\t+\t0\tgene_id \"G1\"; transcript_id \"T2\"; gene_name \"GENE1\";\n"

const (
	rawSE = "ID\tGeneID\tgeneSymbol\tchr\tstrand\tPValue\tFDR\tIncLevelDifference\n" +
		"1\t\"G1\"\t\"GENE1\"\tchr1\t+\t0.0001\t0.001\t0.3\n" +
		"2\t\"G9\"\t\"GENE9\"\tchr1\t+\t0.0001\t0.001\t-0.5\n" +
		"3\t\"G1\"\t\"GENE1\"\tchr1\t+\t0.2\t0.5\t0.3\n" +
		"4\t\"G1\"\t\"GENE1\"\tchr1\t+\t0.0001\t0.001\t0.05\n"

	fromGTFSE = "ID\tGeneID\tgeneSymbol\tchr\tstrand\texonStart_0base\texonEnd\n" +
		"1\t\"G1\"\t\"GENE1\"\tchr1\t+\t40\t60\n" +
		"2\t\"G9\"\t\"GENE9\"\tchr1\t+\t10\t20\n" +
		"3\t\"G1\"\t\"GENE1\"\tchr1\t+\t40\t60\n" +
		"4\t\"G1\"\t\"GENE1\"\tchr1\t+\t40\t60\n"

	// Events 1 and 2 of rawSE.
	filteredSE = "ID\tGeneID\tgeneSymbol\tchr\tstrand\tPValue\tFDR\tIncLevelDifference\n" +
		"1\t\"G1\"\t\"GENE1\"\tchr1\t+\t0.0001\t0.001\t0.3\n" +
		"2\t\"G9\"\t\"GENE9\"\tchr1\t+\t0.0001\t0.001\t-0.5\n"
)

// testFASTA holds a 100 nt chr1 without any stop codon in any frame.
var testFASTA = ">chr1 test\n" + "ATG" + strings.Repeat("GCT", 32) + "G\n"

type fixture struct {
	dir     string
	config  string
	gtf     string
	fasta   string
	dataset string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	f := &fixture{
		dir:     dir,
		config:  filepath.Join(dir, "nmdscan.yaml"),
		gtf:     filepath.Join(dir, "test.gtf"),
		fasta:   filepath.Join(dir, "test.fa"),
		dataset: filepath.Join(dir, "rmats", "sample1"),
	}
	require.NoError(t, os.MkdirAll(f.dataset, 0755))

	files := map[string]string{
		f.config: "log_level: error\n",
		f.gtf:    testGTF,
		f.fasta:  testFASTA,
		filepath.Join(f.dataset, "SE.MATS.JC.txt"):          rawSE,
		filepath.Join(f.dataset, "SE.MATS.JC.filtered.txt"): filteredSE,
		filepath.Join(f.dataset, "fromGTF.SE.txt"):          fromGTFSE,
	}
	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return f
}

// run executes the command line with a fresh configuration.
func (f *fixture) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", f.config}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (f *fixture) stores() []string {
	return []string{"--gtf", f.gtf, "--fasta", f.fasta}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRun_Usage(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"analyze", "--no-such-flag"}},
		{"missing analyze flags", []string{"analyze"}},
		{"bad splice type", []string{"analyze", "--dataset-dir", f.dataset, "--splice-type", "ALTPROM", "-o", f.dir}},
		{"missing stores", []string{"analyze", "--dataset-dir", f.dataset, "--splice-type", "SE", "-o", f.dir}},
		{"batch without datasets", []string{"batch", "-o", f.dir}},
		{"filter needs input", []string{"filter"}},
		{"config get needs key", []string{"config", "get"}},
		{"bad log level", []string{"--log-level", "loud", "config"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := f.run(t, tt.args...)
			assert.Equal(t, ExitUsage, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestRun_Version(t *testing.T) {
	f := newFixture(t)
	code, stdout, _ := f.run(t, "--version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, version)
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t)
	outDir := filepath.Join(f.dir, "out")

	args := append(f.stores(), "analyze", "--dataset-dir", f.dataset, "--splice-type", "se", "-o", outDir)
	code, stdout, stderr := f.run(t, args...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "SE: 2 events, 1 results, 1 skipped, 0 failed, 1 genes not found\n", stdout)

	results := readLines(t, filepath.Join(outDir, output.ResultsFile))
	require.Len(t, results, 2)
	assert.Equal(t, strings.Join(output.ResultColumns, ","), results[0])
	assert.True(t, strings.HasPrefix(results[1], "G1,T1,41,60,26,20,6,False,False,Inclusion,"), results[1])

	skipped := readLines(t, filepath.Join(outDir, output.SkippedFile))
	require.Len(t, skipped, 2)
	assert.True(t, strings.HasPrefix(skipped[1], "G1,T2,41,60,"), skipped[1])
}

func TestAnalyze_ResultsDBAndMetrics(t *testing.T) {
	f := newFixture(t)
	dbPath := filepath.Join(f.dir, "results.duckdb")
	metricsPath := filepath.Join(f.dir, "nmdscan.prom")

	args := append(f.stores(),
		"--results-db", dbPath, "--metrics-file", metricsPath, "--workers", "2",
		"analyze", "--dataset-dir", f.dataset, "--splice-type", "SE", "-o", filepath.Join(f.dir, "out"))
	code, _, stderr := f.run(t, args...)
	require.Equal(t, ExitSuccess, code, stderr)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "nmdscan_events_total")
	assert.Contains(t, string(prom), "nmdscan_missing_genes_total")

	code, stdout, stderr := f.run(t, "--results-db", dbPath, "runs")
	require.Equal(t, ExitSuccess, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "sample1")
	assert.Contains(t, lines[1], "SE")
}

func TestBatch_SkipsExistingResults(t *testing.T) {
	f := newFixture(t)
	outDir := filepath.Join(f.dir, "out")
	args := append(f.stores(), "batch", "--dataset-dir", filepath.Dir(f.dataset), "--splice-types", "SE", "-o", outDir)

	code, stdout, stderr := f.run(t, args...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "Completed 1 of 1 analyses\n", stdout)
	assert.FileExists(t, filepath.Join(outDir, "sample1", "SE", output.ResultsFile))

	code, stdout, _ = f.run(t, args...)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "Nothing to do: all results exist\n", stdout)
}

func TestBatch_MissingTablesFail(t *testing.T) {
	f := newFixture(t)
	outDir := filepath.Join(f.dir, "out")
	args := append(f.stores(), "batch", "--single-dataset", f.dataset, "-o", outDir)

	code, stdout, stderr := f.run(t, args...)
	assert.Equal(t, ExitError, code)
	assert.Equal(t, "Completed 1 of 5 analyses\n", stdout)
	assert.Contains(t, stderr, "4 of 5 analyses failed")
	assert.FileExists(t, filepath.Join(outDir, "sample1", "SE", output.ResultsFile))
	assert.NoFileExists(t, filepath.Join(outDir, "sample1", "RI", output.ResultsFile))
}

func TestFilter_Dataset(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.dataset, "SE.MATS.JC.filtered.txt")))

	code, stdout, stderr := f.run(t, "filter", "--dataset-dir", f.dataset)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "SE: kept 2 of 4 events\n", stdout)

	data, err := os.ReadFile(filepath.Join(f.dataset, "SE.MATS.JC.filtered.txt"))
	require.NoError(t, err)
	// Quotes are not carried over.
	assert.Equal(t, strings.ReplaceAll(filteredSE, "\"", ""), string(data))
}

func TestFilter_Thresholds(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := f.run(t, "filter", "-i", filepath.Join(f.dataset, "SE.MATS.JC.txt"), "--fdr", "0.6", "--dpsi", "0.01")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 5)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	cacheDir := filepath.Join(f.dir, "cache")

	code, stdout, stderr := f.run(t, "--gtf", f.gtf, "--cache-dir", cacheDir, "index")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Annotation cache built: 1 genes, 2 transcripts")

	code, stdout, _ = f.run(t, "--gtf", f.gtf, "--cache-dir", cacheDir, "index")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Annotation cache up to date")

	code, stdout, _ = f.run(t, "--gtf", f.gtf, "--cache-dir", cacheDir, "index", "--rebuild")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Annotation cache built")
}

func TestCacheDirNotWritable(t *testing.T) {
	f := newFixture(t)
	cacheDir := filepath.Join(f.dir, "not-a-dir")
	require.NoError(t, os.WriteFile(cacheDir, []byte("x"), 0644))

	// index exists to write the cache, so it fails
	code, _, stderr := f.run(t, "--gtf", f.gtf, "--cache-dir", cacheDir, "index")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "annotation cache was not written")

	// analyze only loses the cache
	outDir := filepath.Join(f.dir, "out")
	args := append(f.stores(), "--cache-dir", cacheDir, "analyze", "--dataset-dir", f.dataset, "--splice-type", "SE", "-o", outDir)
	code, stdout, stderr := f.run(t, args...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "SE: 2 events, 1 results")
	assert.FileExists(t, filepath.Join(outDir, output.ResultsFile))
}

func TestConfig_SetGet(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := f.run(t, "config", "set", "fasta", "/data/GRCh38.fa.gz")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Set fasta = /data/GRCh38.fa.gz in "+f.config)

	code, stdout, _ = f.run(t, "config", "get", "fasta")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "/data/GRCh38.fa.gz\n", stdout)

	code, _, stderr = f.run(t, "config", "get", "no_such_key")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "unknown configuration key")
}

func TestConfig_SetTyped(t *testing.T) {
	tests := []struct {
		key, value string
		want       string // line written to the config file
		get        string
	}{
		{key: "workers", value: "8", want: "workers: 8", get: "8"},
		{key: "fdr", value: "0.05", want: "fdr: 0.05", get: "0.05"},
		{key: "dpsi", value: "0.2", want: "dpsi: 0.2", get: "0.2"},
		{key: "log_level", value: "debug", want: "log_level: debug", get: "debug"},
		{key: "log_format", value: "json", want: "log_format: json", get: "json"},
		{key: "assembly", value: "GRCh37", want: "assembly: GRCh37", get: "GRCh37"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f := newFixture(t)

			code, _, stderr := f.run(t, "config", "set", tt.key, tt.value)
			require.Equal(t, ExitSuccess, code, stderr)

			data, err := os.ReadFile(f.config)
			require.NoError(t, err)
			assert.Contains(t, strings.Split(string(data), "\n"), tt.want)

			code, stdout, _ := f.run(t, "config", "get", tt.key)
			require.Equal(t, ExitSuccess, code)
			assert.Equal(t, tt.get+"\n", stdout)
		})
	}
}

func TestConfig_SetRelativePath(t *testing.T) {
	f := newFixture(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(f.dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	code, _, stderr := f.run(t, "config", "set", "gtf", "annotation.gtf")
	require.Equal(t, ExitSuccess, code, stderr)

	code, stdout, _ := f.run(t, "config", "get", "gtf")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, filepath.Join(f.dir, "annotation.gtf")+"\n", stdout)
}

func TestConfig_SetInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
		wantErr          string
	}{
		{"unknown key", "genome", "/data/x.fa", "unknown configuration key"},
		{"workers not a number", "workers", "many", "positive integer"},
		{"workers zero", "workers", "0", "positive integer"},
		{"fdr above one", "fdr", "1.5", "between 0 and 1"},
		{"dpsi negative", "dpsi", "-0.1", "between 0 and 1"},
		{"dpsi not a number", "dpsi", "NaN", "between 0 and 1"},
		{"log level", "log_level", "loud", "invalid log level"},
		{"log format", "log_format", "xml", "invalid log format"},
		{"assembly", "assembly", "hg19", "unsupported assembly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before, err := os.ReadFile(f.config)
			require.NoError(t, err)

			code, _, stderr := f.run(t, "config", "set", tt.key, tt.value)
			assert.Equal(t, ExitUsage, code)
			assert.Contains(t, stderr, tt.wantErr)

			after, err := os.ReadFile(f.config)
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	f := newFixture(t)
	t.Setenv("NMDSCAN_FASTA", "/env/genome.fa")

	code, stdout, _ := f.run(t, "config", "get", "fasta")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "/env/genome.fa\n", stdout)
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// GENCODE FTP URLs
const (
	gencodeBaseURL = "https://ftp.ebi.ac.uk/pub/databases/gencode/Gencode_human/release_46"
	gencodeVersion = "v46"
)

// gencodeURLs returns the annotation and primary assembly URLs for an assembly.
func gencodeURLs(baseURL, assembly string) (gtfURL, fastaURL string, err error) {
	switch strings.ToUpper(assembly) {
	case "GRCH37":
		gtfURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.annotation.gtf.gz", baseURL, gencodeVersion)
		fastaURL = baseURL + "/GRCh37_mapping/GRCh37.primary_assembly.genome.fa.gz"
	case "GRCH38":
		gtfURL = fmt.Sprintf("%s/gencode.%s.annotation.gtf.gz", baseURL, gencodeVersion)
		fastaURL = baseURL + "/GRCh38.primary_assembly.genome.fa.gz"
	default:
		return "", "", fmt.Errorf("unsupported assembly %q (expected GRCh37 or GRCh38)", assembly)
	}
	return gtfURL, fastaURL, nil
}

func (a *app) downloadCommand() *cobra.Command {
	var (
		assembly  string
		outputDir string
		gtfOnly   bool
		baseURL   string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the GENCODE annotation and reference genome",
		Long: `Download the GENCODE gene annotation and primary assembly FASTA. Files land in
~/.nmdscan/<assembly>/ by default; analyze and batch pick them up there when
--gtf and --fasta are not given.`,
		Example: `  nmdscan download
  nmdscan download --assembly GRCh37 --output /data/gencode`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gtfURL, fastaURL, err := gencodeURLs(baseURL, assembly)
			if err != nil {
				return &usageError{err: err}
			}

			destDir := filepath.Join(outputDir, strings.ToLower(assembly))
			if outputDir == "" {
				if destDir = defaultGENCODEPath(assembly); destDir == "" {
					return fmt.Errorf("cannot determine home directory")
				}
			}
			if err := os.MkdirAll(destDir, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", destDir, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloading GENCODE %s for %s into %s\n", gencodeVersion, assembly, destDir)

			urls := []string{gtfURL}
			if !gtfOnly {
				urls = append(urls, fastaURL)
			}
			for _, u := range urls {
				if err := downloadFile(cmd.Context(), u, filepath.Join(destDir, filepath.Base(u)), out); err != nil {
					return fmt.Errorf("download %s: %w", filepath.Base(u), err)
				}
			}

			fmt.Fprintln(out, "Download complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&assembly, "assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: ~/.nmdscan/)")
	cmd.Flags().BoolVar(&gtfOnly, "gtf-only", false, "Only download the GTF annotation")
	cmd.Flags().StringVar(&baseURL, "base-url", gencodeBaseURL, "GENCODE release URL")
	_ = cmd.Flags().MarkHidden("base-url")
	return cmd
}

// downloadFile fetches url into destPath through a temporary file.
// Existing files are kept.
func downloadFile(ctx context.Context, url, destPath string, out io.Writer) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(destPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 2 * time.Hour}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw := &progressWriter{out: out, total: resp.ContentLength, lastPrint: time.Now()}
	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(out, "    Done: %s\n", formatSize(pw.downloaded))
	return nil
}

// progressWriter reports download progress at most once per second.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// defaultGENCODEPath returns ~/.nmdscan/<assembly>.
func defaultGENCODEPath(assembly string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nmdscan", strings.ToLower(assembly))
}

// findGENCODEFiles looks for downloaded files in dir. Either path is empty
// when no matching file exists.
func findGENCODEFiles(dir string) (gtfPath, fastaPath string) {
	if dir == "" {
		return "", ""
	}
	if m, _ := filepath.Glob(filepath.Join(dir, "gencode.v*.annotation.gtf.gz")); len(m) > 0 {
		gtfPath = m[len(m)-1]
	}
	if m, _ := filepath.Glob(filepath.Join(dir, "GRCh*.primary_assembly.genome.fa.gz")); len(m) > 0 {
		fastaPath = m[0]
	}
	return gtfPath, fastaPath
}

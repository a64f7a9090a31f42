package annotation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GTFLoader loads gene models from GTF files (plain or gzipped).
type GTFLoader struct {
	path string
}

// NewGTFLoader creates a new GTF loader.
func NewGTFLoader(path string) *GTFLoader {
	return &GTFLoader{path: path}
}

// Load parses the GTF file into a new store.
func (l *GTFLoader) Load() (*Store, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return l.parseGTF(reader)
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	source      string
	featureType string
	start       int64
	end         int64
	strand      byte
	attributes  map[string]string
}

// parseGTF parses GTF content and returns a populated store.
// Genes and transcripts keep the order of their first appearance; exon and
// CDS segments are sorted by ascending genomic start.
func (l *GTFLoader) parseGTF(reader io.Reader) (*Store, error) {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var (
		genes           = make(map[string]*Gene)
		geneOrder       []string
		transcripts     = make(map[string]*Transcript)
		transcriptOrder []string
	)

	gene := func(feat *gtfFeature) *Gene {
		id := feat.attributes["gene_id"]
		g, ok := genes[id]
		if !ok {
			g = &Gene{
				ID:     id,
				Name:   feat.attributes["gene_name"],
				Chrom:  feat.chrom,
				Strand: feat.strand,
			}
			genes[id] = g
			geneOrder = append(geneOrder, id)
		}
		return g
	}

	transcript := func(feat *gtfFeature, id string) *Transcript {
		t, ok := transcripts[id]
		if !ok {
			// Transcripts without their own line are inferred from exon/CDS records.
			t = &Transcript{
				ID:       id,
				GeneID:   feat.attributes["gene_id"],
				GeneName: feat.attributes["gene_name"],
				Chrom:    feat.chrom,
				Start:    feat.start,
				End:      feat.end,
				Strand:   feat.strand,
				Biotype:  transcriptBiotype(feat.attributes),
			}
			transcripts[id] = t
			transcriptOrder = append(transcriptOrder, id)
		}
		return t
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := l.parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		if feat.attributes["gene_id"] == "" {
			continue
		}

		g := gene(feat)
		if feat.featureType == "gene" {
			continue
		}

		transcriptID := feat.attributes["transcript_id"]
		if transcriptID == "" {
			continue
		}

		switch feat.featureType {
		case "transcript":
			t := transcript(feat, transcriptID)
			t.Start, t.End = feat.start, feat.end
			t.Biotype = transcriptBiotype(feat.attributes)

		case "exon":
			t := transcript(feat, transcriptID)
			t.Exons = append(t.Exons, feat.segment())

		case "CDS":
			t := transcript(feat, transcriptID)
			t.CDS = append(t.CDS, feat.segment())
		}

		if g.Name == "" {
			g.Name = feat.attributes["gene_name"]
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	store := NewStore()
	for _, id := range geneOrder {
		store.AddGene(genes[id])
	}

	// Assemble transcripts with sorted segments
	for _, id := range transcriptOrder {
		t := transcripts[id]
		sortSegments(t.Exons)
		sortSegments(t.CDS)
		if n := len(t.Exons); n > 0 {
			t.Start = min(t.Start, t.Exons[0].Start)
			t.End = max(t.End, t.Exons[n-1].End)
		}
		store.AddTranscript(t)
	}

	return store, nil
}

func (f *gtfFeature) segment() Segment {
	return Segment{Chrom: f.chrom, Start: f.start, End: f.end, Strand: f.strand}
}

// parseLine parses a single GTF line.
func (l *GTFLoader) parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}

	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	if start > end {
		return nil, fmt.Errorf("invalid GTF line: start %d > end %d", start, end)
	}

	strand, err := parseStrand(fields[6])
	if err != nil {
		return nil, err
	}

	feat := &gtfFeature{
		chrom:       fields[0],
		source:      fields[1],
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      strand,
		attributes:  parseAttributes(fields[8]),
	}

	return feat, nil
}

// parseAttributes parses GTF attribute column.
// Format: key "value"; key "value"; ...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	// Split by semicolon
	parts := strings.Split(attrStr, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Find the first space to separate key from value
		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}

		key := part[:idx]
		value := strings.TrimSpace(part[idx+1:])

		// Remove quotes
		value = strings.Trim(value, "\"")

		attrs[key] = value
	}

	return attrs
}

// transcriptBiotype returns the GENCODE transcript_type or the Ensembl transcript_biotype.
func transcriptBiotype(attrs map[string]string) string {
	if bt := attrs["transcript_type"]; bt != "" {
		return bt
	}
	return attrs["transcript_biotype"]
}

// parseStrand validates a GTF strand column.
func parseStrand(s string) (byte, error) {
	switch s {
	case "+":
		return StrandForward, nil
	case "-":
		return StrandReverse, nil
	default:
		return 0, fmt.Errorf("unsupported strand %q", s)
	}
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}

func sortSegments(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].Start < segs[j].Start
	})
}

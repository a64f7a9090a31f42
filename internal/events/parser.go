package events

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Common rMATS column names
const (
	ColID                 = "ID"
	ColGeneID             = "GeneID"
	ColGeneSymbol         = "geneSymbol"
	ColChrom              = "chr"
	ColStrand             = "strand"
	ColFDR                = "FDR"
	ColIncLevelDifference = "IncLevelDifference"
)

// Parser reads rows from a tab-separated rMATS table with a header line.
// Supports plain and gzipped files. Field values are unquoted.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	header     []string
	columns    map[string]int
}

// NewParser creates a parser for the given file.
func NewParser(path string) (*Parser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rMATS file: %w", err)
	}

	p := &Parser{file: file}

	br := bufio.NewReader(file)
	magic, _ := br.Peek(2)

	// Check for gzip magic number (0x1f, 0x8b)
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = br
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// parseHeader reads the first non-empty line as the column header.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{Line: p.lineNumber, Message: "no header line found"}
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		p.header = splitFields(line)
		p.columns = make(map[string]int, len(p.header))
		for i, col := range p.header {
			if _, dup := p.columns[col]; !dup {
				p.columns[col] = i
			}
		}
		return nil
	}
}

// Header returns the column names.
func (p *Parser) Header() []string {
	return p.header
}

// Column returns the index of a named column, or -1.
func (p *Parser) Column(name string) int {
	if i, ok := p.columns[name]; ok {
		return i
	}
	return -1
}

// Require returns the indices of the named columns, or an error naming
// every missing one.
func (p *Parser) Require(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	var missing []string
	for i, name := range names {
		idx[i] = p.Column(name)
		if idx[i] == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{
			Line:    1,
			Message: fmt.Sprintf("missing expected columns %v", missing),
		}
	}
	return idx, nil
}

// Next returns the fields of the next data row, or nil at end of input.
// Rows shorter than the header are padded with empty fields.
func (p *Parser) Next() ([]string, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read line %d: %w", p.lineNumber+1, err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		fields := splitFields(line)
		for len(fields) < len(p.header) {
			fields = append(fields, "")
		}
		return fields, nil
	}
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during rMATS table parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rMATS parse error at line %d: %s", e.Line, e.Message)
}

func splitFields(line string) []string {
	fields := strings.Split(line, "\t")
	for i, f := range fields {
		fields[i] = unquote(f)
	}
	return fields
}

// unquote strips one pair of surrounding double quotes (rMATS quotes GeneID).
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseFloat parses a numeric column; "NA", "nan" and empty values are NaN.
func parseFloat(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

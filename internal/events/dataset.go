package events

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Dataset is an rMATS output directory.
type Dataset struct {
	Name string
	Dir  string
}

// NewDataset creates a dataset named after its directory.
func NewDataset(dir string) Dataset {
	return Dataset{Name: filepath.Base(filepath.Clean(dir)), Dir: dir}
}

// Discover returns every sub-directory of root as a dataset, sorted by name.
func Discover(root string) ([]Dataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dataset directory: %w", err)
	}
	var datasets []Dataset
	for _, e := range entries {
		if e.IsDir() {
			datasets = append(datasets, Dataset{Name: e.Name(), Dir: filepath.Join(root, e.Name())})
		}
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Name < datasets[j].Name })
	return datasets, nil
}

// RawPath returns the path of the unfiltered junction-count table for a splice type.
func (d Dataset) RawPath(t SpliceType) string {
	return filepath.Join(d.Dir, string(t)+".MATS.JC.txt")
}

// FilteredPath returns the path of the filtered event table for a splice type.
func (d Dataset) FilteredPath(t SpliceType) string {
	return filepath.Join(d.Dir, string(t)+".MATS.JC.filtered.txt")
}

// FromGTFPath returns the path of the event coordinate table for a splice type.
func (d Dataset) FromGTFPath(t SpliceType) string {
	return filepath.Join(d.Dir, "fromGTF."+string(t)+".txt")
}

// EventsFor loads the filtered events of a splice type joined with their exon
// coordinates from the fromGTF table. Events without coordinates are dropped;
// the order of the filtered table is preserved.
func (d Dataset) EventsFor(t SpliceType) ([]Event, error) {
	startCol, endCol, err := t.CoordinateColumns()
	if err != nil {
		return nil, err
	}

	coords, err := readCoordinates(d.FromGTFPath(t), startCol, endCol)
	if err != nil {
		return nil, err
	}

	p, err := NewParser(d.FilteredPath(t))
	if err != nil {
		return nil, err
	}
	defer p.Close()

	idx, err := p.Require(ColID, ColGeneID, ColIncLevelDifference)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.FilteredPath(t), err)
	}
	idCol, geneCol, dpsiCol := idx[0], idx[1], idx[2]
	symbolCol := p.Column(ColGeneSymbol)
	chromCol := p.Column(ColChrom)
	strandCol := p.Column(ColStrand)
	fdrCol := p.Column(ColFDR)

	var events []Event
	for {
		fields, err := p.Next()
		if err != nil {
			return nil, err
		}
		if fields == nil {
			break
		}

		dpsi, err := parseFloat(fields[dpsiCol])
		if err != nil {
			return nil, &ParseError{Line: p.LineNumber(), Message: fmt.Sprintf("invalid IncLevelDifference: %s", fields[dpsiCol])}
		}

		ev := Event{
			ID:                 fields[idCol],
			GeneID:             fields[geneCol],
			GeneSymbol:         optional(fields, symbolCol),
			Chrom:              optional(fields, chromCol),
			Strand:             optional(fields, strandCol),
			IncLevelDifference: dpsi,
		}
		if fdrCol >= 0 {
			if ev.FDR, err = parseFloat(fields[fdrCol]); err != nil {
				return nil, &ParseError{Line: p.LineNumber(), Message: fmt.Sprintf("invalid FDR: %s", fields[fdrCol])}
			}
		}

		for _, c := range coords[ev.ID] {
			ev.ExonStart, ev.ExonEnd = c[0], c[1]
			events = append(events, ev)
		}
	}

	return events, nil
}

// readCoordinates maps event ID to its exon coordinates, converting the
// 0-based start to 1-based.
func readCoordinates(path, startCol, endCol string) (map[string][][2]int64, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	idx, err := p.Require(ColID, startCol, endCol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	coords := make(map[string][][2]int64)
	for {
		fields, err := p.Next()
		if err != nil {
			return nil, err
		}
		if fields == nil {
			break
		}

		start, err := strconv.ParseInt(fields[idx[1]], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: p.LineNumber(), Message: fmt.Sprintf("invalid %s: %s", startCol, fields[idx[1]])}
		}
		end, err := strconv.ParseInt(fields[idx[2]], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: p.LineNumber(), Message: fmt.Sprintf("invalid %s: %s", endCol, fields[idx[2]])}
		}

		id := fields[idx[0]]
		coords[id] = append(coords[id], [2]int64{start + 1, end})
	}
	return coords, nil
}

func optional(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

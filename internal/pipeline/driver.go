package pipeline

import (
	"errors"
	"fmt"
	"sort"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gopkg.in/fatih/set.v0"

	"github.com/inodb/nmdscan/internal/annotation"
	"github.com/inodb/nmdscan/internal/events"
	"github.com/inodb/nmdscan/internal/metrics"
	"github.com/inodb/nmdscan/internal/orf"
)

// FeatureStore looks up the transcripts of a gene.
type FeatureStore interface {
	// TranscriptsOf returns the transcripts of a gene, or an error
	// (typically *annotation.GeneLookupError) when the gene is unknown.
	TranscriptsOf(geneID string) ([]*annotation.Transcript, error)
}

// ExonOverlapper finds exons of a transcript partially overlapping an interval.
type ExonOverlapper interface {
	OverlappingExons(t *annotation.Transcript, start, end int64) ([]annotation.Segment, error)
}

// Driver analyzes splicing events against an annotation and a genome.
// It is safe for concurrent use once configured.
type Driver struct {
	features FeatureStore
	genome   orf.SequenceStore
	overlaps ExonOverlapper
	logger   *zap.Logger
	metrics  *metrics.RunMetrics

	refs    *gocache.Cache // transcript ID -> reference CDS
	missing set.Interface  // gene IDs not found in the annotation
}

// NewDriver creates a driver over the given stores.
func NewDriver(features FeatureStore, genome orf.SequenceStore) *Driver {
	d := &Driver{
		features: features,
		genome:   genome,
		logger:   zap.NewNop(),
		refs:     gocache.New(gocache.NoExpiration, 0),
		missing:  set.New(set.ThreadSafe),
	}
	if o, ok := features.(ExonOverlapper); ok {
		d.overlaps = o
	}
	return d
}

// SetLogger sets the logger for warning and debug messages.
func (d *Driver) SetLogger(l *zap.Logger) {
	d.logger = l
}

// SetMetrics sets the metrics recorder. Nil disables metrics.
func (d *Driver) SetMetrics(m *metrics.RunMetrics) {
	d.metrics = m
}

// MissingGenes returns the sorted gene IDs that could not be found so far.
func (d *Driver) MissingGenes() []string {
	var ids []string
	for _, v := range d.missing.List() {
		ids = append(ids, v.(string))
	}
	sort.Strings(ids)
	return ids
}

// AnalyzeEvent analyzes one event against every transcript of its gene.
// A gene lookup failure is returned as an error and yields no outcomes.
func (d *Driver) AnalyzeEvent(st events.SpliceType, ev events.Event) ([]Outcome, error) {
	d.metrics.RecordEvent(string(st))

	transcripts, err := d.features.TranscriptsOf(ev.GeneID)
	if err != nil {
		d.metrics.RecordMissingGene(string(st))
		if !d.missing.Has(ev.GeneID) {
			d.missing.Add(ev.GeneID)
			d.logger.Warn("skipping gene",
				zap.String("gene_id", ev.GeneID),
				zap.String("event_id", ev.ID),
				zap.String("splice_type", string(st)),
				zap.Error(err))
		}
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(transcripts))
	for _, t := range transcripts {
		o := d.AnalyzePair(t, st, ev)
		switch {
		case o.Result != nil:
			d.metrics.RecordPair(string(st), metrics.OutcomeResult)
			d.metrics.RecordPrediction(string(st), o.Result.Disrupted, o.Result.LikelyNMD)
		case o.Skip != nil:
			d.metrics.RecordPair(string(st), metrics.OutcomeSkip)
			d.logger.Debug("exon not found in transcript",
				zap.String("transcript_id", t.ID),
				zap.String("event_id", ev.ID),
				zap.Int64("exon_start", ev.ExonStart),
				zap.Int64("exon_end", ev.ExonEnd))
		default:
			d.metrics.RecordPair(string(st), metrics.OutcomeError)
			d.logger.Warn("error processing transcript",
				zap.String("gene_id", ev.GeneID),
				zap.String("transcript_id", t.ID),
				zap.String("event_id", ev.ID),
				zap.Error(o.Err))
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// AnalyzePair runs reconstruction and classification for one transcript and
// one event. Errors and panics become a *orf.TranscriptProcessingError
// outcome; a missing event exon becomes a skip.
func (d *Driver) AnalyzePair(t *annotation.Transcript, st events.SpliceType, ev events.Event) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			var id string
			if t != nil {
				id = t.ID
			}
			out = Outcome{Err: &orf.TranscriptProcessingError{
				TranscriptID: id,
				EventID:      ev.ID,
				Err:          fmt.Errorf("panic: %v", r),
			}}
		}
	}()

	ref, err := d.reference(t)
	if err != nil {
		return Outcome{Err: &orf.TranscriptProcessingError{TranscriptID: t.ID, EventID: ev.ID, Err: err}}
	}

	alt, err := orf.Reconstruct(t, d.genome, &orf.Exclusion{Start: ev.ExonStart, End: ev.ExonEnd})
	if err != nil {
		var notFound *orf.ExonNotFoundError
		if errors.As(err, &notFound) {
			return Outcome{Skip: d.skipRecord(t, st, ev, err)}
		}
		return Outcome{Err: &orf.TranscriptProcessingError{TranscriptID: t.ID, EventID: ev.ID, Err: err}}
	}

	p := orf.Predict(t, ref, alt)
	return Outcome{Result: &DisruptionResult{
		EventID:            ev.ID,
		SpliceType:         st,
		GeneID:             ev.GeneID,
		TranscriptID:       t.ID,
		ExonStart:          ev.ExonStart,
		ExonEnd:            ev.ExonEnd,
		RefLenAA:           p.RefLenAA,
		AltLenAA:           p.AltLenAA,
		TruncationAA:       p.TruncationAA,
		Disrupted:          p.Disrupted,
		LikelyNMD:          p.LikelyNMD,
		Direction:          ev.Direction(),
		IncLevelDifference: ev.IncLevelDifference,
		NMDEvaluated:       p.Evaluated,
		PTCPosition:        p.PTCPosition,
		LastJunction:       p.LastJunction,
		HasJunction:        p.HasJunction,
	}}
}

// reference returns the reference CDS of t, reconstructing it on first use.
func (d *Driver) reference(t *annotation.Transcript) (string, error) {
	if v, ok := d.refs.Get(t.ID); ok {
		return v.(string), nil
	}
	seq, err := orf.Reconstruct(t, d.genome, nil)
	if err != nil {
		return "", err
	}
	d.refs.Set(t.ID, seq, gocache.NoExpiration)
	return seq, nil
}

func (d *Driver) skipRecord(t *annotation.Transcript, st events.SpliceType, ev events.Event, err error) *SkipRecord {
	s := &SkipRecord{
		EventID:      ev.ID,
		SpliceType:   st,
		GeneID:       ev.GeneID,
		TranscriptID: t.ID,
		ExonStart:    ev.ExonStart,
		ExonEnd:      ev.ExonEnd,
		Reason:       err.Error(),
	}
	if d.overlaps != nil {
		partial, err := d.overlaps.OverlappingExons(t, ev.ExonStart, ev.ExonEnd)
		if err != nil {
			d.logger.Warn("exon overlap lookup failed",
				zap.String("transcript_id", t.ID),
				zap.Error(err))
		}
		s.OverlappingExons = len(partial)
	}
	return s
}

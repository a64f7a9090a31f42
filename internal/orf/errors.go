package orf

import "fmt"

// ExonNotFoundReason is the skip reason recorded for an ExonNotFoundError.
const ExonNotFoundReason = "Exon to skip not found in transcript"

// ExonNotFoundError reports that no exon of a transcript matches the
// coordinates of the exon to exclude.
type ExonNotFoundError struct {
	TranscriptID string
	Start, End   int64
}

func (e *ExonNotFoundError) Error() string {
	return ExonNotFoundReason
}

// TranscriptProcessingError wraps any other failure while processing one
// (transcript, event) pair.
type TranscriptProcessingError struct {
	TranscriptID string
	EventID      string
	Err          error
}

func (e *TranscriptProcessingError) Error() string {
	return fmt.Sprintf("process transcript %s (event %s): %v", e.TranscriptID, e.EventID, e.Err)
}

func (e *TranscriptProcessingError) Unwrap() error {
	return e.Err
}

package source

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable matches a *SourceUnavailableError.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedCollection means the content parsed as JSON but is not a
	// GeoJSON FeatureCollection.
	ErrMalformedCollection = errors.New("malformed feature collection")

	// ErrMarkupContent means the content is an HTML page, usually a hosting
	// error or landing page served instead of the data file.
	ErrMarkupContent = errors.New("content looks like HTML, not JSON")

	// ErrNotJSON means the content is not parseable JSON.
	ErrNotJSON = errors.New("content is not valid JSON")
)

// SourceUnavailableError reports that every candidate for a dataset failed.
type SourceUnavailableError struct {
	Key      string
	Attempts int
	// Last is the failure of the final candidate, if any was attempted.
	Last error
}

func (e *SourceUnavailableError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("dataset %q: %s after %d candidates", e.Key, ErrSourceUnavailable, e.Attempts)
	}
	return fmt.Sprintf("dataset %q: %s after %d candidates: %v", e.Key, ErrSourceUnavailable, e.Attempts, e.Last)
}

// Is lets errors.Is(err, ErrSourceUnavailable) match.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

func (e *SourceUnavailableError) Unwrap() error { return e.Last }

// CandidateError is the failure of a single candidate location.
type CandidateError struct {
	Location string
	Err      error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Location, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }

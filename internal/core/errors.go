package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller-input failures. The HTTP layer maps these to
// status codes; everything else is a 500.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrParseFailure      = errors.New("document parse failure")
)

// UpstreamError wraps a non-success response from the embedding service or
// the vector database with enough context for operator diagnosis. The raw
// body is kept for logs, not for client responses.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// UpstreamUnavailable wraps a transport-level failure reaching an upstream
// service.
type UpstreamUnavailable struct {
	Service string
	Err     error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// Stage names an ingestion pipeline step for failure reporting.
type Stage string

const (
	StageUploaded Stage = "uploaded"
	StageParsed   Stage = "parsed"
	StageChunked  Stage = "chunked"
	StageEmbedded Stage = "embedded"
	StageIndexed  Stage = "indexed"
)

// StageError is the single aggregated ingestion failure surfaced to the
// caller, naming the responsible stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingestion failed at stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

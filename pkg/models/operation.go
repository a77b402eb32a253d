package models

import (
	"fmt"
	"time"
)

// Direction is the transfer direction of a sync session
type Direction string

const (
	// DirectionUpload pushes local files to the remote
	DirectionUpload Direction = "upload"
	// DirectionDownload pulls remote files into the local tree
	DirectionDownload Direction = "download"
)

// ComparisonMethod defines how local and remote files are compared before a transfer
type ComparisonMethod string

const (
	// CompareNone transfers every selected file
	CompareNone ComparisonMethod = "none"
	// CompareNameSize skips files present on both sides with the same size
	CompareNameSize ComparisonMethod = "namesize"
	// CompareTimestamp skips files whose destination is the same size and not older
	CompareTimestamp ComparisonMethod = "timestamp"
)

// ParseComparisonMethod validates a comparison method name. Empty means none.
func ParseComparisonMethod(s string) (ComparisonMethod, error) {
	switch ComparisonMethod(s) {
	case "", CompareNone:
		return CompareNone, nil
	case CompareNameSize, CompareTimestamp:
		return ComparisonMethod(s), nil
	}
	return "", &ValidationError{Field: "ComparisonMethod", Message: fmt.Sprintf("unknown comparison method %q", s)}
}

// SyncOperation describes one sync session
type SyncOperation struct {
	ID        string
	Provider  string
	Direction Direction

	// RootPath is the local directory the logical paths are relative to
	RootPath string

	// Paths selects logical paths. Empty selects everything on the source side.
	Paths []string

	ExcludePatterns  []string
	ComparisonMethod ComparisonMethod
	DryRun           bool
	MaxWorkers       int
	BandwidthLimit   int64 // bytes per second, 0 = unlimited
	CreatedAt        time.Time
}

// Validate checks if the operation is runnable
func (op *SyncOperation) Validate() error {
	if op.Direction != DirectionUpload && op.Direction != DirectionDownload {
		return &ValidationError{Field: "Direction", Message: fmt.Sprintf("direction must be upload or download, got %q", op.Direction)}
	}
	if op.RootPath == "" {
		return &ValidationError{Field: "RootPath", Message: "root path is required"}
	}
	if op.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	if op.BandwidthLimit < 0 {
		return &ValidationError{Field: "BandwidthLimit", Message: "bandwidth limit cannot be negative"}
	}
	if _, err := ParseComparisonMethod(string(op.ComparisonMethod)); err != nil {
		return err
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

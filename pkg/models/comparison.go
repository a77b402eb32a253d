package models

// ComparisonResult is the outcome of comparing the local and remote side of an entry
type ComparisonResult struct {
	// Match is true when the transfer can be skipped
	Match bool

	// Reason explains why the sides differ or match
	Reason string

	// Difference categorizes a mismatch, empty on match
	Difference DifferenceType

	// Method is the comparison method used
	Method ComparisonMethod
}

// DifferenceType categorizes why files differ
type DifferenceType string

const (
	DiffSize    DifferenceType = "size"
	DiffModTime DifferenceType = "modtime"
	DiffMissing DifferenceType = "missing"
	// DiffUnknown is reported when a side carries no usable metadata
	DiffUnknown DifferenceType = "unknown"
)

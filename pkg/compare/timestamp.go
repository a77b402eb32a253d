package compare

import (
	"fmt"
	"time"

	"github.com/sdejongh/remotesync/pkg/models"
)

// Tolerance absorbs timestamp precision differences between backends
const Tolerance = time.Second

// TimestampComparator compares files by size and modification time
type TimestampComparator struct{}

// NewTimestampComparator creates a new timestamp comparator
func NewTimestampComparator() *TimestampComparator {
	return &TimestampComparator{}
}

// Compare matches when both sides have the same size and the source is not
// newer than the destination. A side without a modification time never matches.
func (c *TimestampComparator) Compare(entry *models.FileEntry, direction models.Direction) models.ComparisonResult {
	src, dst, res := presence(entry, direction, models.CompareTimestamp)
	if res != nil {
		return *res
	}

	if src.Size != dst.Size {
		return models.ComparisonResult{
			Reason:     fmt.Sprintf("file sizes differ (source: %d, dest: %d)", src.Size, dst.Size),
			Difference: models.DiffSize,
			Method:     models.CompareTimestamp,
		}
	}

	if src.ModTime.IsZero() || dst.ModTime.IsZero() {
		return models.ComparisonResult{Reason: "modification time unknown", Difference: models.DiffUnknown, Method: models.CompareTimestamp}
	}

	if src.ModTime.Sub(dst.ModTime) > Tolerance {
		return models.ComparisonResult{
			Reason: fmt.Sprintf("source is newer (source: %s, dest: %s)",
				src.ModTime.Format("2006-01-02 15:04:05"), dst.ModTime.Format("2006-01-02 15:04:05")),
			Difference: models.DiffModTime,
			Method:     models.CompareTimestamp,
		}
	}

	return models.ComparisonResult{Match: true, Reason: "size and timestamp match", Method: models.CompareTimestamp}
}

// Name returns the comparator name
func (c *TimestampComparator) Name() models.ComparisonMethod {
	return models.CompareTimestamp
}

package compare

import (
	"fmt"

	"github.com/sdejongh/remotesync/pkg/models"
)

// NameSizeComparator compares files by name and size only.
// Names always match since entries are keyed by logical path.
type NameSizeComparator struct{}

// NewNameSizeComparator creates a new name/size comparator
func NewNameSizeComparator() *NameSizeComparator {
	return &NameSizeComparator{}
}

// Compare matches when both sides exist with the same size
func (c *NameSizeComparator) Compare(entry *models.FileEntry, direction models.Direction) models.ComparisonResult {
	src, dst, res := presence(entry, direction, models.CompareNameSize)
	if res != nil {
		return *res
	}

	if src.Size != dst.Size {
		return models.ComparisonResult{
			Reason:     fmt.Sprintf("file sizes differ (source: %d, dest: %d)", src.Size, dst.Size),
			Difference: models.DiffSize,
			Method:     models.CompareNameSize,
		}
	}

	return models.ComparisonResult{Match: true, Reason: "name and size match", Method: models.CompareNameSize}
}

// Name returns the comparator name
func (c *NameSizeComparator) Name() models.ComparisonMethod {
	return models.CompareNameSize
}

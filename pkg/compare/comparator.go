package compare

import (
	"fmt"

	"github.com/sdejongh/remotesync/pkg/models"
	"github.com/sdejongh/remotesync/pkg/provider"
	"github.com/sdejongh/remotesync/pkg/storage"
)

// Comparator decides whether the transfer of an entry can be skipped
type Comparator interface {
	// Compare compares the source and destination side of entry for the given direction
	Compare(entry *models.FileEntry, direction models.Direction) models.ComparisonResult

	// Name returns the name of the comparison method
	Name() models.ComparisonMethod
}

// New returns the comparator for method
func New(method models.ComparisonMethod) (Comparator, error) {
	switch method {
	case "", models.CompareNone:
		return NoneComparator{}, nil
	case models.CompareNameSize:
		return NewNameSizeComparator(), nil
	case models.CompareTimestamp:
		return NewTimestampComparator(), nil
	default:
		return nil, fmt.Errorf("unknown comparison method: %s", method)
	}
}

// NoneComparator never matches: every selected file is transferred
type NoneComparator struct{}

func (NoneComparator) Compare(entry *models.FileEntry, direction models.Direction) models.ComparisonResult {
	return models.ComparisonResult{Reason: "comparison disabled", Method: models.CompareNone}
}

func (NoneComparator) Name() models.ComparisonMethod {
	return models.CompareNone
}

// LocalMeta converts local file info into entry metadata
func LocalMeta(info *storage.FileInfo) *models.FileMeta {
	if info == nil {
		return nil
	}
	return &models.FileMeta{Size: info.Size, ModTime: info.ModTime}
}

// RemoteMeta converts a remote entry into entry metadata
func RemoteMeta(entry provider.RemoteEntry) *models.FileMeta {
	return &models.FileMeta{Size: entry.Size, ModTime: entry.ModTime, ETag: entry.ETag}
}

// sides returns the source and destination metadata of entry for direction
func sides(entry *models.FileEntry, direction models.Direction) (src, dst *models.FileMeta) {
	if direction == models.DirectionDownload {
		return entry.Remote, entry.Local
	}
	return entry.Local, entry.Remote
}

// presence checks that both sides exist and report a size
func presence(entry *models.FileEntry, direction models.Direction, method models.ComparisonMethod) (*models.FileMeta, *models.FileMeta, *models.ComparisonResult) {
	src, dst := sides(entry, direction)
	switch {
	case src == nil:
		return nil, nil, &models.ComparisonResult{Reason: "file missing on source side", Difference: models.DiffMissing, Method: method}
	case dst == nil:
		return nil, nil, &models.ComparisonResult{Reason: "file missing on destination side", Difference: models.DiffMissing, Method: method}
	case src.Size < 0 || dst.Size < 0:
		return nil, nil, &models.ComparisonResult{Reason: "size unknown", Difference: models.DiffUnknown, Method: method}
	}
	return src, dst, nil
}

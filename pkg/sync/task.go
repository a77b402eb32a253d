package sync

import (
	"github.com/sdejongh/remotesync/pkg/models"
)

// FileTask is one resolved path of a session
type FileTask struct {
	Entry *models.FileEntry

	// Action is the transfer to perform, or ActionSkip
	Action models.Action

	// Detail explains a skip
	Detail string

	// Index is the 1-based position used in progress updates
	Index int
}

// Path returns the logical path
func (t *FileTask) Path() string {
	return t.Entry.RelativePath
}

// Size returns the expected transfer size from the source side, -1 when unknown
func (t *FileTask) Size() int64 {
	src := t.Entry.Local
	if t.Action == models.ActionDownload {
		src = t.Entry.Remote
	}
	if src == nil {
		return -1
	}
	return src.Size
}

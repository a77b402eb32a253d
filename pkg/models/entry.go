package models

import (
	"time"
)

// FileMeta is what one side knows about a file
type FileMeta struct {
	// Size in bytes, -1 when unknown
	Size int64

	// ModTime is the last modification time, zero when unknown
	ModTime time.Time

	// ETag is the remote entity tag, empty for local files
	ETag string
}

// FileEntry is one logical path of a sync session with what each side
// reports about it
type FileEntry struct {
	// RelativePath is the logical path: relative and '/'-separated
	RelativePath string

	// Local is nil when the file does not exist locally
	Local *FileMeta

	// Remote is nil when the file does not exist remotely
	Remote *FileMeta
}

// FileLocation indicates which side(s) a file exists on
type FileLocation string

const (
	LocationLocal  FileLocation = "local"
	LocationRemote FileLocation = "remote"
	LocationBoth   FileLocation = "both"
	LocationNone   FileLocation = "none"
)

// Location reports where the entry exists
func (e *FileEntry) Location() FileLocation {
	switch {
	case e.Local != nil && e.Remote != nil:
		return LocationBoth
	case e.Local != nil:
		return LocationLocal
	case e.Remote != nil:
		return LocationRemote
	default:
		return LocationNone
	}
}

// Action represents what is done with a file
type Action string

const (
	// ActionUpload sends the local file to the remote
	ActionUpload Action = "upload"
	// ActionDownload writes the remote file locally
	ActionDownload Action = "download"
	// ActionSkip leaves the file alone because both sides already match
	ActionSkip Action = "skip"
)

package restic

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// BackupStats is the summary restic emits as the last JSON message of a
// successful backup.
type BackupStats struct {
	FilesNew            int     `json:"files_new"`
	FilesChanged        int     `json:"files_changed"`
	FilesUnmodified     int     `json:"files_unmodified"`
	DataAdded           uint64  `json:"data_added"`
	TotalFilesProcessed int     `json:"total_files_processed"`
	TotalBytesProcessed uint64  `json:"total_bytes_processed"`
	TotalDuration       float64 `json:"total_duration"`
	SnapshotID          string  `json:"snapshot_id"`
}

func (s BackupStats) String() string {
	return fmt.Sprintf("%d files (%d new, %d changed), %s processed, %s added in %.1fs",
		s.TotalFilesProcessed, s.FilesNew, s.FilesChanged,
		humanize.Bytes(s.TotalBytesProcessed), humanize.Bytes(s.DataAdded), s.TotalDuration)
}

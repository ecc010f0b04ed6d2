package model

import "path/filepath"

// Descriptor is the persistent, observable state of one transfer.
// It is also the payload of the sidecar record written next to the target file.
type Descriptor struct {
	ID            string `json:"id"`
	FileName      string `json:"file_name"`
	DestDirectory string `json:"dest_directory"`
	SourceURL     string `json:"source_url"`
	ETag          string `json:"etag"`
	CurrentSize   int64  `json:"current_size"`
	TotalSize     int64  `json:"total_size"`
}

// FullPath returns the target file path.
func (d Descriptor) FullPath() string {
	return filepath.Join(d.DestDirectory, d.FileName)
}

// Percent returns the download progress in [0, 100].
func (d Descriptor) Percent() int {
	return Percent(d.CurrentSize, d.TotalSize)
}

// Percent returns 0 when total is unknown, otherwise 100*current/total truncated.
func Percent(current, total int64) int {
	if total < 1 {
		return 0
	}
	p := current * 100 / total
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return int(p)
}

// Batch is published by the scheduler each time its active task count drains to zero.
type Batch struct {
	// Errors is the number of tasks that ended in ERROR since the previous batch.
	Errors int
}

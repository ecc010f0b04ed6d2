// Package record persists the sidecar record of a download task.
//
// The record is a small JSON document describing the task (id, source URL,
// target location, cache validator and sizes). It lets a later run decide
// whether bytes already on disk are still current.
//
// # Storage Layout
//
// [FileStore] keeps the record next to the target file:
//
//	{dir}/{file}        (target, after completion)
//	{dir}/{file}.part   (temporary payload while downloading)
//	{dir}/{file}.task   (sidecar record)
//
// [BucketStore] keeps all records in one gocloud.dev/blob bucket instead,
// keyed by the target path.
//
// # Record Format
//
//	{
//	  "id": "0b7c6c1e-...",
//	  "file_name": "file.bin",
//	  "dest_directory": "downloads/dir",
//	  "source_url": "https://host/dir/file.bin",
//	  "etag": "abc",
//	  "current_size": 1000000,
//	  "total_size": 1000000
//	}
package record

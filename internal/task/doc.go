// Package task implements a single resumable download.
//
// A Task probes its source with a HEAD request, reconciles what is already on
// disk, then fetches the remaining bytes in fixed-size range requests written
// into a temporary file. When all bytes are present the temporary file is
// moved into place and a sidecar record is written.
//
// # Resume
//
// Partial data is reused only when the server's ETag matches the one stored in
// the sidecar record. A missing or changed ETag, or a temporary file larger
// than the resource, restarts the transfer from byte zero. A target that
// already exists with a matching ETag is reused without downloading.
//
// # Lifecycle
//
//	WAIT --Start--> DOWNLOADING --done--> COMPLETED
//	                     |  \--protocol, storage or exhausted retries--> ERROR
//	                     \--Stop--> WAIT
//
// Transport failures restart the transfer up to Options.MaxRetries times; the
// counter resets whenever a chunk is stored. Every transition is reported as a
// model.Event on the channel passed to New.
package task

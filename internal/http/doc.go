// Package http provides the HTTP transport used by download tasks.
//
// This package handles:
//   - Connection pooling for many concurrent tasks
//   - HEAD requests to get file metadata (size, ETag)
//   - Range requests for chunked downloads
//   - Per-segment URL encoding
//   - Success status classification (200-399)
//
// The client never retries on its own. Transport failures are returned as
// errors and status codes are returned as-is, so the caller owns the retry
// policy.
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    MaxIdleConnsPerHost: 16,
//	})
//
//	// Probe
//	resp, err := client.Head(ctx, http.EncodeURL(url))
//	// resp.StatusCode, resp.ContentLength, resp.ETag
//
//	// Download a range
//	resp, err = client.GetRange(ctx, url, startByte, endByte)
//	// resp.Body holds the bytes
package http

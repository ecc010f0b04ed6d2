package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ligustah/fetchq/internal/config"
	fetchhttp "github.com/ligustah/fetchq/internal/http"
	"github.com/ligustah/fetchq/internal/progress"
	"github.com/ligustah/fetchq/internal/task"
)

// runInfo probes a URL the way a task does before downloading.
func runInfo(ctx context.Context, cmd *infoCmd, cfg config.Config, stdout, stderr io.Writer) int {
	client := fetchhttp.NewClient(fetchhttp.Options{
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
		Timeout:             cfg.HTTP.Timeout,
	})

	resp, err := client.Head(ctx, fetchhttp.EncodeURL(cmd.URL))
	if err != nil {
		fmt.Fprintf(stderr, "Error: probe %s: %v\n", cmd.URL, err)
		return ExitSourceNotAccess
	}

	size := "unknown"
	if resp.ContentLength >= 0 {
		size = fmt.Sprintf("%s (%d bytes)", progress.FormatBytes(resp.ContentLength), resp.ContentLength)
	}

	fmt.Fprintf(stdout, "URL:            %s\n", cmd.URL)
	fmt.Fprintf(stdout, "Status:         %d\n", resp.StatusCode)
	fmt.Fprintf(stdout, "Size:           %s\n", size)
	fmt.Fprintf(stdout, "ETag:           %s\n", resp.ETag)
	fmt.Fprintf(stdout, "Accepts ranges: %t\n", resp.AcceptsRanges)
	fmt.Fprintf(stdout, "File name:      %s\n", task.FileNameFromURL(cmd.URL))
	fmt.Fprintf(stdout, "Directory:      %s\n", task.DefaultDirectory(cfg.DownloadDir, cmd.URL))

	if !fetchhttp.IsOK(resp.StatusCode) {
		return ExitSourceNotAccess
	}
	return ExitSuccess
}

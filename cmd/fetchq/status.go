package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ligustah/fetchq/internal/config"
	"github.com/ligustah/fetchq/internal/model"
	"github.com/ligustah/fetchq/internal/progress"
	"github.com/ligustah/fetchq/internal/record"
)

// runStatus prints the sidecar record of each path. A path ending in the
// record suffix is read as-is; anything else is a target file looked up in
// the configured record store.
func runStatus(ctx context.Context, cmd *statusCmd, cfg config.Config, stdout, stderr io.Writer) int {
	store, err := record.Open(ctx, cfg.RecordsURL)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer store.Close()

	code := ExitSuccess
	for _, p := range cmd.Paths {
		var d model.Descriptor
		if strings.HasSuffix(p, record.Suffix) {
			d, err = record.ReadFile(ctx, p)
		} else {
			d, err = store.Load(ctx, p)
		}
		if errors.Is(err, record.ErrNotFound) {
			fmt.Fprintf(stderr, "%s: no record\n", p)
			code = ExitGeneralError
			continue
		}
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", p, err)
			code = ExitStorageError
			continue
		}

		fmt.Fprintf(stdout, "%s\n", d.FullPath())
		fmt.Fprintf(stdout, "  id:       %s\n", d.ID)
		fmt.Fprintf(stdout, "  source:   %s\n", d.SourceURL)
		fmt.Fprintf(stdout, "  etag:     %s\n", d.ETag)
		fmt.Fprintf(stdout, "  progress: %s / %s (%d%%)\n",
			progress.FormatBytes(d.CurrentSize),
			progress.FormatBytes(d.TotalSize),
			d.Percent(),
		)
	}
	return code
}

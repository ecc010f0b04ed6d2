package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ligustah/fetchq/internal/config"
	fetchhttp "github.com/ligustah/fetchq/internal/http"
	"github.com/ligustah/fetchq/internal/model"
	"github.com/ligustah/fetchq/internal/progress"
	"github.com/ligustah/fetchq/internal/record"
	"github.com/ligustah/fetchq/internal/scheduler"
	"github.com/ligustah/fetchq/internal/task"
)

func runGet(ctx context.Context, cmd *getCmd, cfg config.Config, logger zerolog.Logger, stdout, stderr io.Writer) int {
	records, err := record.Open(ctx, cfg.RecordsURL)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer records.Close()

	client := fetchhttp.NewClient(fetchhttp.Options{
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
		Timeout:             cfg.HTTP.Timeout,
	})

	s := scheduler.New(
		scheduler.WithMaxParallel(cfg.MaxParallel),
		scheduler.WithTickInterval(cfg.TickInterval),
		scheduler.WithDownloadDir(cfg.DownloadDir),
		scheduler.WithLogger(logger),
		scheduler.WithTaskOptions(task.Options{
			ChunkSize:       int64(cfg.ChunkSize),
			MaxRetries:      cfg.Retry.Attempts,
			RetryBackoff:    cfg.Retry.Backoff,
			RetryMaxBackoff: cfg.Retry.MaxBackoff,
			Override:        cfg.Override,
			Transport:       client,
			Records:         records,
		}),
	)

	var ids []string
	for _, u := range cmd.URLs {
		ids = append(ids, s.AddTask(u, "", ""))
	}
	for _, t := range cfg.Tasks {
		ids = append(ids, s.AddTask(t.URL, t.Directory, t.FileName))
	}
	if len(ids) == 0 {
		fmt.Fprintln(stderr, "Error: no URLs given and no tasks configured")
		return ExitInvalidArgs
	}

	batches := s.SubscribeBatches(1)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(s, progress.Options{Output: stderr})
		reporter.Start()
	}

	var (
		batch       model.Batch
		interrupted bool
	)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return s.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		select {
		case batch = <-batches:
		case <-gctx.Done():
			interrupted = true
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	if reporter != nil {
		reporter.Stop()
	}

	code := ExitSuccess
	for _, id := range dedupe(ids) {
		d, _ := s.TaskInfo(id)
		st, _ := s.TaskState(id)
		switch st {
		case model.StateCompleted:
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", st, progress.FormatBytes(d.TotalSize), d.FullPath())
		case model.StateError:
			err := s.TaskErr(id)
			fmt.Fprintf(stdout, "%s\t%s\t%v\n", st, d.SourceURL, err)
			code = max(code, exitCodeFor(err))
		default:
			fmt.Fprintf(stdout, "%s\t%d%%\t%s\n", st, d.Percent(), d.SourceURL)
		}
	}

	if interrupted {
		return ExitInterrupted
	}
	if batch.Errors > 0 && code == ExitSuccess {
		code = ExitGeneralError
	}
	return code
}

func exitCodeFor(err error) int {
	var (
		statusErr  *task.StatusError
		storageErr *task.StorageError
	)
	switch {
	case errors.As(err, &statusErr):
		return ExitSourceNotAccess
	case errors.As(err, &storageErr):
		return ExitStorageError
	default:
		return ExitGeneralError
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

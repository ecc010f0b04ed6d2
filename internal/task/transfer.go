package task

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"net/http"
	"time"

	fetchhttp "github.com/ligustah/fetchq/internal/http"
	"github.com/ligustah/fetchq/internal/model"
	"github.com/ligustah/fetchq/internal/record"
	"github.com/ligustah/fetchq/internal/storage"
)

// minReplaceSize is the smallest temporary file that replaces an existing
// target on finalize. Anything shorter is treated as a leftover.
const minReplaceSize = 2

// run is one Start of a task. Only its goroutine touches file.
type run struct {
	t      *Task
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	url    string
	file   storage.File
}

func (r *run) loop() {
	defer r.cancel()
	t := r.t

	for {
		r.emit(model.EventStart, -1, nil)

		code, err := r.transfer()
		r.closeFile()

		var transportErr *TransportError
		switch {
		case err == nil:
			d := r.finish(model.StateCompleted, nil)
			t.logger.Info().Int64("size", d.TotalSize).Str("path", d.FullPath()).Msg("download complete")
			r.emit(model.EventCompleted, code, nil)
			return

		case r.stopped():
			r.finish(model.StateWait, nil)
			t.logger.Debug().Msg("download stopped")
			r.emit(model.EventStop, code, nil)
			return

		case errors.As(err, &transportErr):
			attempt, ok := t.nextRetry()
			if !ok {
				t.logger.Error().Err(err).Int("attempts", attempt+1).Msg("download failed, retries exhausted")
				r.fail(code, err)
				return
			}
			t.logger.Warn().Err(err).Int("retry", attempt).Msg("transport failure, restarting transfer")
			if r.backoff(attempt) != nil {
				r.finish(model.StateWait, nil)
				r.emit(model.EventStop, code, nil)
				return
			}

		default:
			t.logger.Error().Err(err).Int("status", code).Msg("download failed")
			r.fail(code, err)
			return
		}
	}
}

// transfer probes the resource, reconciles local state and fetches the
// remaining chunks. It returns the best available status code.
func (r *run) transfer() (int, error) {
	t := r.t
	opts := t.opts

	resp, err := opts.Transport.Head(r.ctx, r.url)
	if r.stopped() {
		return statusOf(resp), errStopped
	}
	if err != nil {
		return 0, &TransportError{Op: "probe", Err: err}
	}
	code := resp.StatusCode
	if !fetchhttp.IsOK(code) {
		return code, &StatusError{Op: "probe", Code: code}
	}
	if code == http.StatusOK {
		if resp.ContentLength < 0 {
			return code, ErrUnknownSize
		}
		t.update(func(d *model.Descriptor) { d.TotalSize = resp.ContentLength })
	} else if t.Info().TotalSize <= 0 {
		// Only a 200 carries a usable length; anything else needs a preset size.
		return code, ErrUnknownSize
	}

	d := t.Info()
	target := d.FullPath()
	temp := TempPath(target)

	r.file, err = opts.FS.OpenWrite(temp)
	if err != nil {
		return code, &StorageError{Op: "open", Path: temp, Err: err}
	}
	size, err := r.file.Size()
	if err != nil {
		return code, &StorageError{Op: "stat", Path: temp, Err: err}
	}

	prev, err := opts.Records.Load(r.ctx, target)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		t.logger.Warn().Err(err).Msg("load task record")
	}

	// Bytes on disk are only trusted when the validator still matches.
	etag := resp.ETag
	current := size
	if etag == "" || etag != prev.ETag || size > d.TotalSize {
		if size > 0 {
			t.logger.Debug().Int64("size", size).Msg("discarding stale partial download")
			if err := r.file.Truncate(0); err != nil {
				return code, &StorageError{Op: "truncate", Path: temp, Err: err}
			}
		}
		current = 0
	}
	d = t.update(func(d *model.Descriptor) {
		d.ETag = etag
		d.CurrentSize = current
	})

	if opts.FS.Exists(target) {
		if !opts.Override && etag != "" && etag == prev.ETag {
			r.closeFile()
			if err := opts.FS.Remove(temp); err != nil {
				t.logger.Warn().Err(err).Str("path", temp).Msg("remove temporary file")
			}
			t.update(func(d *model.Descriptor) { d.CurrentSize = d.TotalSize })
			t.logger.Info().Str("path", target).Msg("target is current, skipping download")
			return r.finalize(code)
		}
		if opts.Override {
			if err := opts.FS.Remove(target); err != nil {
				return code, &StorageError{Op: "remove", Path: target, Err: err}
			}
		}
	}

	if err := opts.Records.Save(r.ctx, target, d); err != nil {
		t.logger.Warn().Err(err).Msg("save task record")
	}

	return r.fetchChunks(code)
}

func (r *run) fetchChunks(code int) (int, error) {
	t := r.t
	chunk := t.opts.ChunkSize

	for {
		d := t.Info()
		if d.CurrentSize >= d.TotalSize {
			break
		}
		if r.stopped() {
			return code, errStopped
		}

		start := d.CurrentSize
		end := min(start+chunk, d.TotalSize) - 1
		if start > end {
			return code, fmt.Errorf("%w: %d-%d", ErrInvalidRange, start, end)
		}

		resp, err := t.opts.Transport.GetRange(r.ctx, r.url, start, end)
		if r.stopped() {
			return statusOf(resp), errStopped
		}
		if err != nil {
			return 0, &TransportError{Op: "chunk", Err: err}
		}
		code = resp.StatusCode
		if !fetchhttp.IsOK(code) {
			return code, &StatusError{Op: "chunk", Code: code}
		}

		body := resp.Body
		offset := start
		// A 200 is always the whole resource, whatever the range headers say.
		full := code == http.StatusOK
		if full {
			offset = 0
		} else {
			if err := checkRange(resp, start); err != nil {
				return code, &TransportError{Op: "chunk", Code: code, Err: err}
			}
			if want := end - start + 1; int64(len(body)) > want {
				body = body[:want]
			}
		}
		if len(body) == 0 {
			return code, &TransportError{Op: "chunk", Code: code, Err: errEmptyBody}
		}

		if full {
			if err := r.file.Truncate(0); err != nil {
				return code, &StorageError{Op: "truncate", Path: TempPath(d.FullPath()), Err: err}
			}
		}
		if err := r.write(body, offset); err != nil {
			return code, &StorageError{Op: "write", Path: TempPath(d.FullPath()), Err: err}
		}

		d = t.update(func(d *model.Descriptor) {
			if full {
				d.TotalSize = int64(len(body))
			}
			d.CurrentSize = offset + int64(len(body))
		})
		t.mu.Lock()
		t.retries = 0
		t.mu.Unlock()

		if d.CurrentSize < d.TotalSize {
			r.emit(model.EventUpdate, code, nil)
		}
	}

	return r.finalize(code)
}

// checkRange verifies that a partial response starts where it was asked to.
func checkRange(resp *fetchhttp.Response, start int64) error {
	if resp.StatusCode != http.StatusPartialContent {
		return nil
	}
	got, _, _, err := fetchhttp.ParseContentRange(resp.ContentRange)
	if err != nil {
		return err
	}
	if got != start {
		return fmt.Errorf("%w: got offset %d, want %d", ErrRangeMismatch, got, start)
	}
	return nil
}

func (r *run) write(p []byte, off int64) error {
	if _, err := r.file.WriteAt(p, off); err != nil {
		return err
	}
	return r.file.Sync()
}

// finalize moves the temporary file into place and refreshes the record.
func (r *run) finalize(code int) (int, error) {
	t := r.t
	fsys := t.opts.FS
	r.closeFile()

	d := t.Info()
	target := d.FullPath()
	temp := TempPath(target)
	targetExists := fsys.Exists(target)
	tempExists := fsys.Exists(temp)

	switch {
	case !targetExists && !tempExists:
		return code, &StorageError{Op: "finalize", Path: target, Err: fs.ErrNotExist}

	case !targetExists:
		if err := fsys.Rename(temp, target); err != nil {
			return code, &StorageError{Op: "rename", Path: temp, Err: err}
		}

	case tempExists:
		size, err := fsys.Size(temp)
		if err != nil {
			return code, &StorageError{Op: "stat", Path: temp, Err: err}
		}
		if size < minReplaceSize {
			if err := fsys.Remove(temp); err != nil {
				t.logger.Warn().Err(err).Str("path", temp).Msg("remove temporary file")
			}
			break
		}
		if err := fsys.Remove(target); err != nil {
			return code, &StorageError{Op: "remove", Path: target, Err: err}
		}
		if err := fsys.Rename(temp, target); err != nil {
			return code, &StorageError{Op: "rename", Path: temp, Err: err}
		}
	}

	if err := t.opts.Records.Save(r.parent, target, t.Info()); err != nil {
		t.logger.Warn().Err(err).Msg("save task record")
	}
	return code, nil
}

// stopped reports whether Stop was called or the caller's context ended.
func (r *run) stopped() bool {
	if r.parent.Err() != nil {
		return true
	}
	return r.t.StopRequested()
}

func (r *run) closeFile() {
	if r.file == nil {
		return
	}
	if err := r.file.Close(); err != nil {
		r.t.logger.Warn().Err(err).Msg("close temporary file")
	}
	r.file = nil
}

// finish ends the run. The file is already closed; the request context is
// cancelled here so Done only fires once nothing is held.
func (r *run) finish(state model.State, err error) model.Descriptor {
	r.cancel()
	t := r.t
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.err = err
	close(r.done)
	return t.desc
}

func (r *run) fail(code int, err error) {
	r.finish(model.StateError, err)
	r.emit(model.EventError, code, err)
}

func (r *run) emit(kind model.EventKind, code int, err error) {
	t := r.t
	t.mu.Lock()
	ev := t.eventLocked(kind, code, err)
	t.mu.Unlock()
	t.emit(r.parent, ev)
}

// backoff waits for an exponentially increasing duration with jitter.
func (r *run) backoff(attempt int) error {
	opts := r.t.opts
	if opts.RetryBackoff <= 0 {
		return r.ctx.Err()
	}

	backoff := opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if opts.RetryMaxBackoff > 0 && backoff > opts.RetryMaxBackoff {
		backoff = opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-r.ctx.Done():
		return r.ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

func statusOf(resp *fetchhttp.Response) int {
	if resp == nil {
		return -1
	}
	return resp.StatusCode
}

package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/ligustah/fetchq/internal/model"
)

// Source is what the reporter polls. *scheduler.Scheduler implements it.
type Source interface {
	AllTaskInfo() []model.Descriptor
	TaskState(id string) (model.State, bool)
}

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often the bars are refreshed from the source.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Summary is the final tally printed by Stop.
type Summary struct {
	Completed int
	Failed    int
	Pending   int
	Bytes     int64
	Duration  time.Duration
}

// Reporter renders one progress bar per task.
type Reporter struct {
	opts Options
	src  Source

	progress  *mpb.Progress
	bars      map[string]*mpb.Bar
	startTime time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// NewReporter creates a new progress reporter over src.
func NewReporter(src Source, opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		src:    src,
		bars:   make(map[string]*mpb.Bar),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins rendering.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.progress = mpb.New(
		mpb.WithOutput(r.opts.Output),
		mpb.WithWidth(48),
		mpb.WithRefreshRate(r.opts.UpdateInterval),
	)

	go r.updateLoop()
}

// Stop completes or aborts every bar, waits for rendering to finish and
// prints a summary line.
func (r *Reporter) Stop() Summary {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return r.summary()
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.done

	s := r.summary()
	fmt.Fprintf(r.opts.Output, "[fetchq] %d completed | %d failed | %d pending | %s in %s\n",
		s.Completed,
		s.Failed,
		s.Pending,
		FormatBytes(s.Bytes),
		formatDuration(s.Duration),
	)
	return s
}

func (r *Reporter) updateLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.refresh()
			r.finish()
			return
		case <-ticker.C:
			r.refresh()
		}
	}
}

func (r *Reporter) refresh() {
	for _, d := range r.src.AllTaskInfo() {
		bar, ok := r.bars[d.ID]
		if !ok {
			bar = r.progress.New(d.TotalSize,
				mpb.BarStyle().Lbound("|").Rbound("|"),
				mpb.PrependDecorators(
					decor.Name(barName(d), decor.WCSyncSpaceR),
					decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				),
				mpb.AppendDecorators(
					decor.Percentage(decor.WCSyncSpace),
				),
			)
			r.bars[d.ID] = bar
		}
		if d.TotalSize > 0 {
			bar.SetTotal(d.TotalSize, false)
		}
		bar.SetCurrent(d.CurrentSize)
	}
}

func (r *Reporter) finish() {
	for _, d := range r.src.AllTaskInfo() {
		bar, ok := r.bars[d.ID]
		if !ok {
			continue
		}
		if st, _ := r.src.TaskState(d.ID); st == model.StateCompleted {
			bar.SetTotal(d.TotalSize, true)
		} else {
			bar.Abort(false)
		}
	}
	r.progress.Wait()
}

func (r *Reporter) summary() Summary {
	var s Summary
	for _, d := range r.src.AllTaskInfo() {
		st, _ := r.src.TaskState(d.ID)
		switch st {
		case model.StateCompleted:
			s.Completed++
		case model.StateError:
			s.Failed++
		default:
			s.Pending++
		}
		s.Bytes += d.CurrentSize
	}
	if !r.startTime.IsZero() {
		s.Duration = time.Since(r.startTime)
	}
	return s
}

func barName(d model.Descriptor) string {
	if d.FileName != "" {
		return d.FileName
	}
	return d.SourceURL
}

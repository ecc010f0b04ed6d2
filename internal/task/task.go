package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	fetchhttp "github.com/ligustah/fetchq/internal/http"
	"github.com/ligustah/fetchq/internal/model"
	"github.com/ligustah/fetchq/internal/record"
	"github.com/ligustah/fetchq/internal/storage"
)

const (
	// DefaultChunkSize is the size of each range request.
	DefaultChunkSize int64 = 2 << 20

	// DefaultMaxRetries is how many times a transport failure restarts the
	// transfer before the task fails.
	DefaultMaxRetries = 5
)

// Transport performs the probe and range requests of a task.
// *fetchhttp.Client implements it.
type Transport interface {
	Head(ctx context.Context, url string) (*fetchhttp.Response, error)
	GetRange(ctx context.Context, url string, start, end int64) (*fetchhttp.Response, error)
}

// Options configures a Task.
type Options struct {
	// ChunkSize is the number of bytes requested per range request.
	// Default: 2 MiB
	ChunkSize int64

	// MaxRetries caps consecutive transport failures. Zero selects the
	// default, a negative value disables retries.
	// Default: 5
	MaxRetries int

	// RetryBackoff is the initial wait before a retry. Zero retries at once.
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the wait between retries.
	RetryMaxBackoff time.Duration

	// Override replaces an existing target instead of reusing it.
	Override bool

	Transport Transport
	FS        storage.FS
	Records   record.Store
	Logger    *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	} else if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Transport == nil {
		o.Transport = fetchhttp.NewClient(fetchhttp.DefaultOptions())
	}
	if o.FS == nil {
		o.FS = storage.OS{}
	}
	if o.Records == nil {
		o.Records = record.NewFileStore()
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// Task downloads one resource into one local file.
//
// Start runs the transfer on its own goroutine and returns immediately. Every
// visible transition is sent to the events channel given to New.
type Task struct {
	opts   Options
	events chan<- model.Event
	logger zerolog.Logger

	mu            sync.Mutex
	desc          model.Descriptor
	state         model.State
	stopRequested bool
	retries       int
	cancel        context.CancelFunc
	done          chan struct{}
	err           error
}

var idle = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// New creates a task in the WAIT state. A missing ID is generated and the
// destination directory is created; failing to create it is only logged,
// the first write reports the real error.
func New(desc model.Descriptor, events chan<- model.Event, opts Options) *Task {
	opts = opts.withDefaults()
	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}

	t := &Task{
		opts:   opts,
		events: events,
		desc:   desc,
		state:  model.StateWait,
		logger: opts.Logger.With().Str("task_id", desc.ID).Str("url", desc.SourceURL).Logger(),
	}

	if desc.DestDirectory != "" {
		if err := opts.FS.MkdirAll(desc.DestDirectory); err != nil {
			t.logger.Warn().Err(err).Str("dir", desc.DestDirectory).Msg("create destination directory")
		}
	}
	return t
}

// ID returns the task identifier.
func (t *Task) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desc.ID
}

// Info returns a snapshot of the task descriptor.
func (t *Task) Info() model.Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desc
}

// State returns the current lifecycle state.
func (t *Task) State() model.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsDownloading reports whether a transfer is in flight.
func (t *Task) IsDownloading() bool {
	return t.State() == model.StateDownloading
}

// Err returns the error that moved the task to ERROR, or nil.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Percent returns download progress in whole percent.
func (t *Task) Percent() int {
	return t.Info().Percent()
}

// StopRequested reports whether a stop was requested and not yet cleared by
// Start.
func (t *Task) StopRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopRequested
}

// SetStopRequested marks the task so the scheduler skips it. Start clears it.
func (t *Task) SetStopRequested(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopRequested = v
}

// SetTotalSize records a known resource size before the first probe. It is
// ignored once the task is downloading.
func (t *Task) SetTotalSize(n int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == model.StateDownloading || n < 0 {
		return false
	}
	t.desc.TotalSize = n
	return true
}

// SaveRecord writes the task descriptor. An empty file writes the sidecar
// record next to the target; anything else is an explicit path.
func (t *Task) SaveRecord(ctx context.Context, file string) error {
	d := t.Info()
	if file == "" {
		return t.opts.Records.Save(ctx, d.FullPath(), d)
	}
	return record.WriteFile(ctx, file, d)
}

// Start begins or resumes the transfer. It returns false when the task is
// already downloading or is misconfigured; the latter moves it to ERROR and
// emits an error event. ctx bounds the transfer and event delivery.
func (t *Task) Start(ctx context.Context) bool {
	t.mu.Lock()
	if t.state == model.StateDownloading {
		t.mu.Unlock()
		return false
	}

	t.stopRequested = false
	t.retries = 0
	if t.desc.FileName == "" {
		t.desc.FileName = FileNameFromURL(t.desc.SourceURL)
	}
	if t.desc.SourceURL == "" || t.desc.FileName == "" {
		t.state = model.StateError
		t.err = ErrInvalidSource
		ev := t.eventLocked(model.EventError, -1, ErrInvalidSource)
		t.mu.Unlock()

		t.logger.Error().Err(ErrInvalidSource).Msg("cannot start task")
		go t.emit(ctx, ev)
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.state = model.StateDownloading
	t.err = nil
	src := t.desc.SourceURL
	t.mu.Unlock()

	r := &run{
		t:      t,
		parent: ctx,
		ctx:    runCtx,
		cancel: cancel,
		done:   t.done,
		url:    fetchhttp.EncodeURL(src),
	}
	go r.loop()
	return true
}

// Stop requests the running transfer to stop and cancels its in-flight
// request. The task moves to WAIT and emits a stop event once the transfer
// goroutine has released the file. Stop returns false when nothing runs.
func (t *Task) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != model.StateDownloading {
		return false
	}
	t.stopRequested = true
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

// Done returns a channel that is closed once the current transfer has left
// DOWNLOADING and released its file and request. It is already closed when
// nothing runs.
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return idle
	}
	return t.done
}

func (t *Task) eventLocked(kind model.EventKind, code int, err error) model.Event {
	return model.Event{
		Kind:       kind,
		TaskID:     t.desc.ID,
		HTTPStatus: code,
		Info:       t.desc,
		Err:        err,
	}
}

// emit never runs under t.mu.
func (t *Task) emit(ctx context.Context, ev model.Event) {
	if t.events == nil {
		return
	}
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

// nextRetry consumes one retry. The counter is reset by every stored chunk.
func (t *Task) nextRetry() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retries >= t.opts.MaxRetries {
		return t.retries, false
	}
	t.retries++
	return t.retries, true
}

func (t *Task) update(fn func(d *model.Descriptor)) model.Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.desc)
	return t.desc
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ligustah/fetchq/internal/model"
	"github.com/ligustah/fetchq/internal/record"
	"github.com/ligustah/fetchq/internal/task"
)

const (
	defaultMaxParallel  = 5
	defaultTickInterval = 100 * time.Millisecond
	eventBuffer         = 256
)

// Option is a functional option for configuring the Scheduler.
type Option func(*Scheduler)

// WithMaxParallel sets how many tasks may download at once.
func WithMaxParallel(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithTickInterval sets how often Run admits a waiting task.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithDownloadDir sets the base directory for tasks added without one.
func WithDownloadDir(dir string) Option {
	return func(s *Scheduler) {
		s.downloadDir = dir
	}
}

// WithTaskOptions sets the options every new task is created with.
func WithTaskOptions(opts task.Options) Option {
	return func(s *Scheduler) {
		s.taskOpts = opts
	}
}

// WithLogger sets the logger for the scheduler and its tasks.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// Scheduler owns a set of download tasks and keeps at most maxParallel of
// them downloading. Tasks are admitted one per tick in insertion order.
type Scheduler struct {
	maxParallel  int
	tickInterval time.Duration
	downloadDir  string
	taskOpts     task.Options
	logger       zerolog.Logger

	events chan model.Event

	mu       sync.Mutex
	tasks    []*task.Task
	byID     map[string]*task.Task
	admitted map[string]struct{}
	active   int
	errors   int
	stopped  bool

	subMu     sync.Mutex
	subs      []chan model.Event
	batchSubs []chan model.Batch
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		maxParallel:  defaultMaxParallel,
		tickInterval: defaultTickInterval,
		logger:       zerolog.Nop(),
		events:       make(chan model.Event, eventBuffer),
		byID:         make(map[string]*task.Task),
		admitted:     make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.taskOpts.Logger == nil {
		s.taskOpts.Logger = &s.logger
	}
	return s
}

// AddTask registers a download of url and returns its task id. A URL that is
// already registered returns the existing id. An empty dir is derived from
// the URL under the download directory; an empty name from its last segment.
func (s *Scheduler) AddTask(url, dir, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.findLocked(url); t != nil {
		return t.ID()
	}

	if dir == "" {
		dir = task.DefaultDirectory(s.downloadDir, url)
	}
	t := task.New(model.Descriptor{
		FileName:      name,
		DestDirectory: dir,
		SourceURL:     url,
	}, s.events, s.taskOpts)
	s.addLocked(t)

	s.logger.Debug().Str("task_id", t.ID()).Str("url", url).Str("dir", dir).Msg("task added")
	return t.ID()
}

// Restore re-adds a task from a sidecar record, keeping its id and sizes.
func (s *Scheduler) Restore(ctx context.Context, recordPath string) (string, error) {
	d, err := record.ReadFile(ctx, recordPath)
	if err != nil {
		return "", fmt.Errorf("restore task: %w", err)
	}
	if d.SourceURL == "" {
		return "", fmt.Errorf("restore task %s: %w", recordPath, task.ErrInvalidSource)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.findLocked(d.SourceURL); t != nil {
		return t.ID(), nil
	}
	if _, ok := s.byID[d.ID]; ok {
		d.ID = ""
	}
	if d.DestDirectory == "" {
		d.DestDirectory = task.DefaultDirectory(s.downloadDir, d.SourceURL)
	}
	t := task.New(d, s.events, s.taskOpts)
	s.addLocked(t)

	s.logger.Debug().Str("task_id", t.ID()).Str("record", recordPath).Msg("task restored")
	return t.ID(), nil
}

func (s *Scheduler) findLocked(url string) *task.Task {
	for _, t := range s.tasks {
		if t.Info().SourceURL == url {
			return t
		}
	}
	return nil
}

func (s *Scheduler) addLocked(t *task.Task) {
	s.tasks = append(s.tasks, t)
	s.byID[t.ID()] = t
}

// StartAll clears the global and every per-task stop flag. Tasks are started
// by the following ticks.
func (s *Scheduler) StartAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
	for _, t := range s.tasks {
		t.SetStopRequested(false)
	}
}

// StartTask clears the stop flags of one task so a following tick can admit
// it. It reports whether the task exists.
func (s *Scheduler) StartTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	s.stopped = false
	t.SetStopRequested(false)
	return true
}

// StopAll stops every task and holds them until StartAll or StartTask.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.stopped = true
	tasks := append([]*task.Task(nil), s.tasks...)
	clear(s.admitted)
	s.active = 0
	s.mu.Unlock()

	for _, t := range tasks {
		if !t.Stop() {
			t.SetStopRequested(true)
		}
	}
	s.logger.Debug().Int("tasks", len(tasks)).Msg("all tasks stopped")
}

// StopTask stops one task and frees its slot. A queued task is held until
// it is started again. It reports whether the task exists.
func (s *Scheduler) StopTask(id string) bool {
	s.mu.Lock()
	t, ok := s.byID[id]
	if ok {
		s.releaseLocked(id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	if !t.Stop() {
		t.SetStopRequested(true)
	}
	return true
}

// Tick runs one scheduling pass and admits at most one waiting task. The
// lock is held through Start so a concurrent StopTask sees either a queued
// task or a running one.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.active >= s.maxParallel {
		return
	}
	t := s.nextLocked()
	if t == nil {
		return
	}
	id := t.ID()
	s.admitted[id] = struct{}{}
	s.active++

	s.logger.Debug().Str("task_id", id).Int("active", s.active).Msg("starting task")
	if !t.Start(ctx) && t.State() != model.StateError {
		// Not started and no error event will follow.
		s.releaseLocked(id)
	}
}

// nextLocked returns the first waiting task that is neither held nor
// already admitted.
func (s *Scheduler) nextLocked() *task.Task {
	for _, t := range s.tasks {
		if _, ok := s.admitted[t.ID()]; ok {
			continue
		}
		if t.State() == model.StateWait && !t.StopRequested() {
			return t
		}
	}
	return nil
}

func (s *Scheduler) releaseLocked(id string) bool {
	if _, ok := s.admitted[id]; !ok {
		return false
	}
	delete(s.admitted, id)
	s.active = max(s.active-1, 0)
	return true
}

// Run drives the scheduler until ctx is done, then stops all tasks.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.logger.Info().
		Int("max_parallel", s.maxParallel).
		Dur("tick_interval", s.tickInterval).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.StopAll()
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

func (s *Scheduler) handleEvent(ev model.Event) {
	var batch *model.Batch
	s.mu.Lock()
	if _, ok := s.byID[ev.TaskID]; !ok {
		// Late event from a task dropped by Clear.
		s.mu.Unlock()
		s.logger.Debug().Str("task_id", ev.TaskID).Str("event", ev.Kind.String()).Msg("event from unknown task ignored")
		return
	}
	switch {
	case ev.Kind == model.EventStop:
		s.releaseLocked(ev.TaskID)
	case ev.Kind.Terminal():
		s.releaseLocked(ev.TaskID)
		if ev.Kind == model.EventError {
			s.errors++
		}
		if s.active == 0 && (s.stopped || s.nextLocked() == nil) {
			batch = &model.Batch{Errors: s.errors}
			s.errors = 0
		}
	}
	s.mu.Unlock()

	s.publish(ev)

	log := s.logger.With().Str("task_id", ev.TaskID).Str("event", ev.Kind.String()).Logger()
	switch ev.Kind {
	case model.EventError:
		log.Warn().Err(ev.Err).Int("status", ev.HTTPStatus).Msg("task failed")
	case model.EventCompleted:
		log.Info().Int64("size", ev.Info.TotalSize).Msg("task completed")
	default:
		log.Trace().Int64("current", ev.Info.CurrentSize).Int64("total", ev.Info.TotalSize).Msg("task event")
	}

	if batch != nil {
		s.logger.Info().Int("errors", batch.Errors).Msg("batch finished")
		s.publishBatch(*batch)
	}
}

// Subscribe returns a channel receiving every task event. Delivery never
// blocks the scheduler: events are dropped when the buffer is full.
func (s *Scheduler) Subscribe(buffer int) <-chan model.Event {
	ch := make(chan model.Event, buffer)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// SubscribeBatches returns a channel receiving one Batch each time the
// scheduler drains.
func (s *Scheduler) SubscribeBatches(buffer int) <-chan model.Batch {
	ch := make(chan model.Batch, buffer)
	s.subMu.Lock()
	s.batchSubs = append(s.batchSubs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Scheduler) publish(ev model.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn().Str("task_id", ev.TaskID).Str("event", ev.Kind.String()).Msg("subscriber is slow, event dropped")
		}
	}
}

func (s *Scheduler) publishBatch(b model.Batch) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.batchSubs {
		select {
		case ch <- b:
		default:
			s.logger.Warn().Int("errors", b.Errors).Msg("subscriber is slow, batch dropped")
		}
	}
}

// Clear stops every task, waits until each has released its file and
// request, then forgets all of them. If ctx ends first the tasks are kept
// (stopped) and ctx's error is returned.
func (s *Scheduler) Clear(ctx context.Context) error {
	s.StopAll()

	s.mu.Lock()
	tasks := append([]*task.Task(nil), s.tasks...)
	s.mu.Unlock()

	for _, t := range tasks {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return fmt.Errorf("clear tasks: %w", ctx.Err())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = nil
	clear(s.byID)
	clear(s.admitted)
	s.active = 0
	s.errors = 0
	s.stopped = false
	return nil
}

// TotalPercent returns the aggregate progress over all tasks.
func (s *Scheduler) TotalPercent() int {
	return model.Percent(s.ByteSize())
}

// ByteSize returns the summed current and total sizes of all tasks.
func (s *Scheduler) ByteSize() (current, total int64) {
	for _, d := range s.AllTaskInfo() {
		current += d.CurrentSize
		total += d.TotalSize
	}
	return current, total
}

// AllTaskInfo returns descriptor snapshots in insertion order.
func (s *Scheduler) AllTaskInfo() []model.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Descriptor, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Info()
	}
	return out
}

// TaskInfo returns the descriptor of one task.
func (s *Scheduler) TaskInfo(id string) (model.Descriptor, bool) {
	t, ok := s.lookup(id)
	if !ok {
		return model.Descriptor{}, false
	}
	return t.Info(), true
}

// TaskState returns the state of one task.
func (s *Scheduler) TaskState(id string) (model.State, bool) {
	t, ok := s.lookup(id)
	if !ok {
		return model.StateWait, false
	}
	return t.State(), true
}

// TaskErr returns the error that failed a task, or nil.
func (s *Scheduler) TaskErr(id string) error {
	t, ok := s.lookup(id)
	if !ok {
		return nil
	}
	return t.Err()
}

// SaveTask writes the record of one task to file, or next to its target
// when file is empty.
func (s *Scheduler) SaveTask(ctx context.Context, id, file string) error {
	t, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("save task %s: not found", id)
	}
	return t.SaveRecord(ctx, file)
}

// SetTotalSize presets the size of a task that has not been probed yet.
func (s *Scheduler) SetTotalSize(id string, n int64) bool {
	t, ok := s.lookup(id)
	if !ok || t.Info().TotalSize > 0 {
		return false
	}
	return t.SetTotalSize(n)
}

func (s *Scheduler) lookup(id string) (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	return t, ok
}

package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ligustah/fetchq/internal/model"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{256 * 1024 * 1024, "256 MiB"},
		{1024 * 1024 * 1024, "1.0 GiB"},
		{1024 * 1024 * 1024 * 1024, "1.0 TiB"},
		{2.5 * 1024 * 1024 * 1024 * 1024, "2.5 TiB"},
	}

	for _, tt := range tests {
		result := FormatBytes(tt.input)
		if result != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KiB", 1024},
		{"1.5KiB", 1536},
		{"2 MiB", 2 * 1024 * 1024},
		{"256MiB", 256 * 1024 * 1024},
		{"1GiB", 1024 * 1024 * 1024},
		{"1TiB", 1024 * 1024 * 1024 * 1024},
		// SI units
		{"1KB", 1000},
		{"1kB", 1000},
		{"1MB", 1000 * 1000},
		{"1GB", 1000 * 1000 * 1000},
	}

	for _, tt := range tests {
		result, err := ParseBytes(tt.input)
		if err != nil {
			t.Errorf("ParseBytes(%q): %v", tt.input, err)
			continue
		}
		if result != tt.expected {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytesInvalid(t *testing.T) {
	for _, s := range []string{"invalid", "", "MiB", "-1KiB"} {
		if _, err := ParseBytes(s); err == nil {
			t.Errorf("ParseBytes(%q): expected error", s)
		}
	}
}

type fakeSource struct {
	mu     sync.Mutex
	tasks  []model.Descriptor
	states map[string]model.State
}

func (f *fakeSource) AllTaskInfo() []model.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Descriptor(nil), f.tasks...)
}

func (f *fakeSource) TaskState(id string) (model.State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[id]
	return st, ok
}

func (f *fakeSource) set(i int, current int64, st model.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[i].CurrentSize = current
	f.states[f.tasks[i].ID] = st
}

func TestReporterStartStop(t *testing.T) {
	src := &fakeSource{
		tasks: []model.Descriptor{
			{ID: "a", FileName: "a.bin", TotalSize: 1024},
			{ID: "b", FileName: "b.bin", TotalSize: 2048},
			{ID: "c", SourceURL: "https://host/c", TotalSize: 0},
		},
		states: map[string]model.State{"a": model.StateDownloading, "b": model.StateDownloading, "c": model.StateWait},
	}

	var out bytes.Buffer
	reporter := NewReporter(src, Options{Output: &out, UpdateInterval: 10 * time.Millisecond})
	reporter.Start()
	reporter.Start()

	src.set(0, 512, model.StateDownloading)
	time.Sleep(30 * time.Millisecond) // Let updates run

	src.set(0, 1024, model.StateCompleted)
	src.set(1, 100, model.StateError)

	summary := reporter.Stop()
	if summary.Completed != 1 || summary.Failed != 1 || summary.Pending != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.Bytes != 1124 {
		t.Errorf("expected 1124 bytes, got %d", summary.Bytes)
	}
	if !strings.Contains(out.String(), "[fetchq] 1 completed | 1 failed | 1 pending") {
		t.Errorf("summary line missing from output:\n%s", out.String())
	}

	// Stopping twice does not print again.
	reporter.Stop()
	if n := strings.Count(out.String(), "[fetchq]"); n != 1 {
		t.Errorf("expected one summary line, got %d", n)
	}
}

func TestReporterStopWithoutStart(t *testing.T) {
	src := &fakeSource{states: map[string]model.State{}}
	var out bytes.Buffer
	summary := NewReporter(src, Options{Output: &out}).Stop()
	if summary != (Summary{}) {
		t.Errorf("unexpected summary %+v", summary)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

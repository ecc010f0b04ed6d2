package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		current, total int64
		want           int
	}{
		{0, 0, 0},
		{10, 0, 0},
		{0, 100, 0},
		{50, 100, 50},
		{999, 1000, 99},
		{1000, 1000, 100},
		{3 << 30, 4 << 30, 75}, // past 2GiB
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.current, tt.total), "Percent(%d, %d)", tt.current, tt.total)
	}
}

func TestDescriptorFullPath(t *testing.T) {
	d := Descriptor{DestDirectory: filepath.Join("a", "b"), FileName: "file.bin"}
	assert.Equal(t, filepath.Join("a", "b", "file.bin"), d.FullPath())
}

func TestEventKindTerminal(t *testing.T) {
	assert.False(t, EventStart.Terminal())
	assert.False(t, EventUpdate.Terminal())
	assert.False(t, EventStop.Terminal())
	assert.True(t, EventCompleted.Terminal())
	assert.True(t, EventError.Terminal())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "wait", StateWait.String())
	assert.Equal(t, "downloading", StateDownloading.String())
	assert.True(t, StateCompleted.IsTerminal())
	assert.False(t, StateWait.IsTerminal())
}

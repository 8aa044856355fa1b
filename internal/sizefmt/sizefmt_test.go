package sizefmt_test

import (
	"testing"

	"github.com/italolelis/batchdl/internal/sizefmt"
	"github.com/stretchr/testify/assert"
)

func TestHumanReadable(t *testing.T) {
	tests := []struct {
		name  string
		bytes uint64
		want  string
	}{
		{"zero", 0, "0 Byte"},
		{"small", 512, "512 Byte"},
		{"kb threshold", 1024, "1024 Byte"},
		{"just above kb", 1025, "1.00 KB"},
		{"one and a half kb", 1536, "1.50 KB"},
		{"mb threshold", 1024 * 1024, "1024.00 KB"},
		{"just above mb", 1024*1024 + 1, "1.00 MB"},
		{"gb threshold", 1024 * 1024 * 1024, "1024.00 MB"},
		{"just above gb", 1024*1024*1024 + 1, "1.00 GB"},
		{"large", 5 * 1024 * 1024 * 1024, "5.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sizefmt.HumanReadable(tt.bytes)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, sizefmt.HumanReadable(tt.bytes), "must be stable across calls")
		})
	}
}

func TestSpeed(t *testing.T) {
	assert.Equal(t, "0 Byte/s", sizefmt.Speed(-5))
	assert.Equal(t, "2.00 KB/s", sizefmt.Speed(2048))
}

func TestChooseBufferSize(t *testing.T) {
	tests := []struct {
		declared uint64
		want     int
	}{
		{0, 1024},
		{1024, 1024},
		{1025, 8 * 1024},
		{1024 * 1024, 8 * 1024},
		{100 * 1024 * 1024, 64 * 1024},
		{128 * 1024 * 1024, 64 * 1024},
		{300 * 1024 * 1024, 1024 * 1024},
		{512 * 1024 * 1024, 1024 * 1024},
		{2 * 1024 * 1024 * 1024, 8 * 1024 * 1024},
	}

	for _, tt := range tests {
		got := sizefmt.ChooseBufferSize(tt.declared)
		assert.Equal(t, tt.want, got, "declared=%d", tt.declared)
		assert.Equal(t, got, sizefmt.ChooseBufferSize(tt.declared))
	}
}

func TestChooseBufferSizeMonotonic(t *testing.T) {
	prev := 0

	for declared := uint64(1); declared < 1<<34; declared *= 2 {
		got := sizefmt.ChooseBufferSize(declared)
		assert.GreaterOrEqual(t, got, prev, "declared=%d", declared)
		prev = got
	}
}

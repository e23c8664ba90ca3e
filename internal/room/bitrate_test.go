package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxBitrate(t *testing.T) {
	cases := []struct {
		width    int
		vp9, av1 int
	}{
		{1280, 2_000_000, 1_500_000},
		{1920, 2_000_000, 1_500_000},
		{1921, 3_500_000, 2_500_000},
		{2048, 3_500_000, 2_500_000},
		{2560, 5_000_000, 3_750_000},
		{2561, 8_000_000, 5_000_000},
		{3840, 8_000_000, 5_000_000},
	}
	for _, c := range cases {
		assert.Equal(t, c.vp9, MaxBitrate(c.width, false), "vp9 %d", c.width)
		assert.Equal(t, c.av1, MaxBitrate(c.width, true), "av1 %d", c.width)
	}
}

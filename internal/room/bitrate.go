package room

// MaxFramerate caps the published screen track.
const MaxFramerate = 40

type bitrateTier struct {
	maxWidth int
	vp9, av1 int
}

var bitrateTiers = []bitrateTier{
	{maxWidth: 1920, vp9: 2_000_000, av1: 1_500_000},
	{maxWidth: 2048, vp9: 3_500_000, av1: 2_500_000},
	{maxWidth: 2560, vp9: 5_000_000, av1: 3_750_000},
}

// MaxBitrate returns the bitrate ceiling for a track of the given width.
func MaxBitrate(width int, useAV1 bool) int {
	for _, t := range bitrateTiers {
		if width <= t.maxWidth {
			if useAV1 {
				return t.av1
			}
			return t.vp9
		}
	}
	if useAV1 {
		return 5_000_000
	}
	return 8_000_000
}

package pipeline

import (
	"driftcast/internal/renderspec"
)

// minSegmentSeconds floors every segment duration so the encoder is never
// asked for a zero-length still.
const minSegmentSeconds = 0.1

// Segment is one timeline entry: which image to show and for how long.
type Segment struct {
	ImageIndex int
	Seconds    float64
}

// BuildTimeline computes the per-image durations for a slideshow.
// audioSeconds <= 0 means the probe failed; the total then falls back to
// interval * imageCount and no scaling applies.
//
// Rules, in precedence order:
//   - repeatImages: the image list cycles until the audio is covered; the
//     final segment is trimmed so the total matches the audio exactly.
//   - autoTime: the audio duration is split evenly across the images, the
//     last image absorbing rounding.
//   - otherwise: each image shows for intervalSeconds, except the last, which
//     absorbs the difference so the total matches the audio when known.
func BuildTimeline(spec *renderspec.Spec, imageCount int, audioSeconds float64) []Segment {
	if imageCount <= 0 {
		return nil
	}

	interval := spec.IntervalSeconds
	if interval < minSegmentSeconds {
		interval = minSegmentSeconds
	}

	total := audioSeconds
	if total <= 0 {
		total = interval * float64(imageCount)
	}

	switch {
	case spec.RepeatImages && audioSeconds > 0:
		return repeatTimeline(imageCount, interval, total)
	case spec.AutoTime && audioSeconds > 0:
		return evenTimeline(imageCount, total)
	default:
		return intervalTimeline(imageCount, interval, total, audioSeconds > 0)
	}
}

func repeatTimeline(imageCount int, interval, total float64) []Segment {
	var out []Segment
	remaining := total
	for i := 0; remaining > 1e-9; i++ {
		d := interval
		if d > remaining {
			d = remaining
		}
		out = append(out, Segment{ImageIndex: i % imageCount, Seconds: clampSegment(d)})
		remaining -= d
	}
	return out
}

func evenTimeline(imageCount int, total float64) []Segment {
	per := total / float64(imageCount)
	out := make([]Segment, imageCount)
	used := 0.0
	for i := 0; i < imageCount; i++ {
		d := per
		if i == imageCount-1 {
			d = total - used
		}
		out[i] = Segment{ImageIndex: i, Seconds: clampSegment(d)}
		used += per
	}
	return out
}

func intervalTimeline(imageCount int, interval, total float64, audioKnown bool) []Segment {
	out := make([]Segment, imageCount)
	for i := 0; i < imageCount; i++ {
		d := interval
		if i == imageCount-1 && audioKnown {
			// Last image absorbs the remainder so video and audio end together.
			d = total - interval*float64(imageCount-1)
		}
		out[i] = Segment{ImageIndex: i, Seconds: clampSegment(d)}
	}
	return out
}

func clampSegment(d float64) float64 {
	if d < minSegmentSeconds {
		return minSegmentSeconds
	}
	return d
}

// timelineTotal sums segment durations.
func timelineTotal(segments []Segment) float64 {
	total := 0.0
	for _, s := range segments {
		total += s.Seconds
	}
	return total
}

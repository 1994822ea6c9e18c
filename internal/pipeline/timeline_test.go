package pipeline

import (
	"math"
	"testing"

	"driftcast/internal/renderspec"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestBuildTimelineInterval(t *testing.T) {
	t.Run("last image absorbs remainder", func(t *testing.T) {
		spec := &renderspec.Spec{Mode: renderspec.ModeSlideshow, IntervalSeconds: 5}
		segments := BuildTimeline(spec, 3, 12)

		if len(segments) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(segments))
		}
		if !almostEqual(segments[0].Seconds, 5) || !almostEqual(segments[1].Seconds, 5) {
			t.Errorf("expected leading segments of 5s, got %v", segments)
		}
		if !almostEqual(segments[2].Seconds, 2) {
			t.Errorf("expected final segment of 2s, got %v", segments[2].Seconds)
		}
		if !almostEqual(timelineTotal(segments), 12) {
			t.Errorf("expected total 12s, got %v", timelineTotal(segments))
		}
	})

	t.Run("single image spans the whole audio", func(t *testing.T) {
		spec := &renderspec.Spec{Mode: renderspec.ModeSlideshow, IntervalSeconds: 5}
		segments := BuildTimeline(spec, 1, 12)

		if len(segments) != 1 {
			t.Fatalf("expected 1 segment, got %d", len(segments))
		}
		if !almostEqual(segments[0].Seconds, 12) {
			t.Errorf("expected 12s segment, got %v", segments[0].Seconds)
		}
	})

	t.Run("probe failure falls back to interval times image count", func(t *testing.T) {
		spec := &renderspec.Spec{Mode: renderspec.ModeSlideshow, IntervalSeconds: 4}
		segments := BuildTimeline(spec, 3, 0)

		if len(segments) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(segments))
		}
		for i, seg := range segments {
			if !almostEqual(seg.Seconds, 4) {
				t.Errorf("segment %d: expected 4s, got %v", i, seg.Seconds)
			}
		}
	})

	t.Run("floor applies when audio is shorter than the schedule", func(t *testing.T) {
		spec := &renderspec.Spec{Mode: renderspec.ModeSlideshow, IntervalSeconds: 5}
		segments := BuildTimeline(spec, 3, 10.01)

		if segments[2].Seconds < minSegmentSeconds {
			t.Errorf("final segment below floor: %v", segments[2].Seconds)
		}
	})
}

func TestBuildTimelineAutoTime(t *testing.T) {
	spec := &renderspec.Spec{
		Mode:            renderspec.ModeSlideshow,
		IntervalSeconds: 5,
		AutoTime:        true,
	}

	cases := []struct {
		name         string
		imageCount   int
		audioSeconds float64
	}{
		{"even split", 4, 20},
		{"uneven split", 3, 10},
		{"single image", 1, 7.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segments := BuildTimeline(spec, tc.imageCount, tc.audioSeconds)

			if len(segments) != tc.imageCount {
				t.Fatalf("expected %d segments, got %d", tc.imageCount, len(segments))
			}
			if !almostEqual(timelineTotal(segments), tc.audioSeconds) {
				t.Errorf("expected total %v, got %v", tc.audioSeconds, timelineTotal(segments))
			}
			for i, seg := range segments {
				if seg.ImageIndex != i {
					t.Errorf("segment %d points at image %d", i, seg.ImageIndex)
				}
			}
		})
	}
}

func TestBuildTimelineRepeatImages(t *testing.T) {
	spec := &renderspec.Spec{
		Mode:            renderspec.ModeSlideshow,
		IntervalSeconds: 5,
		RepeatImages:    true,
	}

	t.Run("images cycle until the audio ends", func(t *testing.T) {
		segments := BuildTimeline(spec, 2, 23)

		if len(segments) != 5 {
			t.Fatalf("expected 5 segments, got %d", len(segments))
		}
		wantIdx := []int{0, 1, 0, 1, 0}
		for i, seg := range segments {
			if seg.ImageIndex != wantIdx[i] {
				t.Errorf("segment %d: expected image %d, got %d", i, wantIdx[i], seg.ImageIndex)
			}
		}
		if !almostEqual(segments[4].Seconds, 3) {
			t.Errorf("expected trimmed final segment of 3s, got %v", segments[4].Seconds)
		}
		if !almostEqual(timelineTotal(segments), 23) {
			t.Errorf("expected total 23s, got %v", timelineTotal(segments))
		}
	})

	t.Run("audio shorter than one interval", func(t *testing.T) {
		segments := BuildTimeline(spec, 3, 2)

		if len(segments) != 1 {
			t.Fatalf("expected 1 segment, got %d", len(segments))
		}
		if !almostEqual(segments[0].Seconds, 2) {
			t.Errorf("expected 2s segment, got %v", segments[0].Seconds)
		}
	})

	t.Run("unknown audio duration disables repetition", func(t *testing.T) {
		segments := BuildTimeline(spec, 2, 0)

		if len(segments) != 2 {
			t.Fatalf("expected 2 segments, got %d", len(segments))
		}
	})
}

func TestBuildTimelineEdges(t *testing.T) {
	t.Run("no images yields no timeline", func(t *testing.T) {
		spec := &renderspec.Spec{Mode: renderspec.ModeSlideshow, IntervalSeconds: 5}
		if got := BuildTimeline(spec, 0, 10); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("zero interval is floored", func(t *testing.T) {
		spec := &renderspec.Spec{Mode: renderspec.ModeSlideshow, IntervalSeconds: 0}
		segments := BuildTimeline(spec, 2, 0)

		for i, seg := range segments {
			if seg.Seconds < minSegmentSeconds {
				t.Errorf("segment %d below floor: %v", i, seg.Seconds)
			}
		}
	})
}

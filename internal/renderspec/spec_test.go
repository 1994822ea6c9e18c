package renderspec

import (
	"reflect"
	"testing"

	"driftcast/internal/pkg/errors"
)

func TestParseNilAndEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"empty string", ""},
		{"empty bytes", []byte(nil)},
		{"nil spec pointer", (*Spec)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if spec != nil {
				t.Errorf("expected nil spec, got %+v", spec)
			}
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse("{not json")
	if !errors.IsInvalidSpec(err) {
		t.Fatalf("expected INVALID_SPEC, got %v", err)
	}
	var e *errors.Error
	if !errors.As(err, &e) || e.Message != "not valid JSON" {
		t.Errorf("expected 'not valid JSON' message, got %v", err)
	}
}

func TestParseSlideshow(t *testing.T) {
	raw := `{
		"mode": "slideshow",
		"images": [3, 1, 3, "x", 2],
		"audios": [7, 7],
		"intervalSeconds": 5,
		"autoTime": false,
		"repeatImages": true,
		"outputFileName": "mix"
	}`

	spec, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Mode != ModeSlideshow {
		t.Errorf("expected slideshow mode, got %s", spec.Mode)
	}
	if !reflect.DeepEqual(spec.Images, []int64{3, 1, 2}) {
		t.Errorf("expected images deduped in order, got %v", spec.Images)
	}
	if !reflect.DeepEqual(spec.Audios, []int64{7}) {
		t.Errorf("expected audios deduped, got %v", spec.Audios)
	}
	if spec.IntervalSeconds != 5 {
		t.Errorf("expected interval=5, got %v", spec.IntervalSeconds)
	}
	if !spec.RepeatImages || spec.AutoTime {
		t.Errorf("expected repeatImages=true autoTime=false, got %+v", spec)
	}
	if spec.OutputFileName != "mix" {
		t.Errorf("expected outputFileName=mix, got %s", spec.OutputFileName)
	}
}

func TestParseWaveform(t *testing.T) {
	raw := `{
		"mode": "waveform",
		"audios": [7],
		"backgroundColor": "#000000",
		"waveColor": "#00ffcc",
		"waveStyle": "bars"
	}`

	spec, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Mode != ModeWaveform {
		t.Errorf("expected waveform mode, got %s", spec.Mode)
	}
	if spec.WaveStyle != WaveBars {
		t.Errorf("expected bars style, got %s", spec.WaveStyle)
	}
	if spec.BackgroundColor != "#000000" || spec.WaveColor != "#00ffcc" {
		t.Errorf("unexpected colors: %+v", spec)
	}
}

func TestParseRejectsUnsupportedShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"missing mode", `{"audios": [1]}`},
		{"unknown mode", `{"mode": "podcast", "audios": [1]}`},
		{"slideshow missing interval", `{"mode":"slideshow","images":[1],"audios":[1],"autoTime":true,"repeatImages":false}`},
		{"slideshow missing autoTime", `{"mode":"slideshow","images":[1],"audios":[1],"intervalSeconds":5,"repeatImages":false}`},
		{"slideshow non-bool repeatImages", `{"mode":"slideshow","images":[1],"audios":[1],"intervalSeconds":5,"autoTime":true,"repeatImages":"yes"}`},
		{"waveform missing colors", `{"mode":"waveform","audios":[1],"waveStyle":"line"}`},
		{"waveform bad style", `{"mode":"waveform","audios":[1],"backgroundColor":"#000","waveColor":"#fff","waveStyle":"pulse"}`},
		{"not an object", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if !errors.IsInvalidSpec(err) {
				t.Fatalf("expected INVALID_SPEC, got %v", err)
			}
		})
	}
}

func TestParseRejectsEmptyMediaLists(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"slideshow no images", `{"mode":"slideshow","images":[],"audios":[1],"intervalSeconds":5,"autoTime":false,"repeatImages":false}`},
		{"slideshow no audios", `{"mode":"slideshow","images":[1],"audios":[],"intervalSeconds":5,"autoTime":false,"repeatImages":false}`},
		{"waveform no audios", `{"mode":"waveform","audios":[],"backgroundColor":"#000","waveColor":"#fff","waveStyle":"line"}`},
		{"non-numeric audios only", `{"mode":"waveform","audios":["a","b"],"backgroundColor":"#000","waveColor":"#fff","waveStyle":"line"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.raw); !errors.IsInvalidSpec(err) {
				t.Fatalf("expected INVALID_SPEC, got %v", err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	specs := []*Spec{
		{
			Mode:            ModeSlideshow,
			Audios:          []int64{2, 3},
			Images:          []int64{1},
			IntervalSeconds: 5,
			AutoTime:        false,
			RepeatImages:    false,
		},
		{
			Mode:            ModeSlideshow,
			Audios:          []int64{9},
			Images:          []int64{4, 5, 6},
			IntervalSeconds: 2.5,
			AutoTime:        true,
			RepeatImages:    true,
			OutputFileName:  "roadtrip",
		},
		{
			Mode:            ModeWaveform,
			Audios:          []int64{7},
			BackgroundColor: "#000000",
			WaveColor:       "#00ffcc",
			WaveStyle:       WaveBars,
		},
	}

	for _, original := range specs {
		data, err := Serialize(original)
		if err != nil {
			t.Fatalf("serialize failed: %v", err)
		}
		parsed, err := Parse(string(data))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if !reflect.DeepEqual(parsed, original) {
			t.Errorf("round trip mismatch:\n got  %+v\n want %+v", parsed, original)
		}
	}
}

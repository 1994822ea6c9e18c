// Package renderspec parses and validates the declarative description of a
// render request. A spec is a tagged union: slideshow (stills timed against an
// audio track) or waveform (audio amplitude rendered as video). Parsing is
// pure; no I/O happens here.
package renderspec

import (
	"encoding/json"
	"math"

	"driftcast/internal/pkg/errors"
)

// Mode selects the render variant.
type Mode string

const (
	ModeSlideshow Mode = "slideshow"
	ModeWaveform  Mode = "waveform"
)

// WaveStyle selects the waveform visualization shape.
type WaveStyle string

const (
	WaveLine   WaveStyle = "line"
	WaveBars   WaveStyle = "bars"
	WaveCircle WaveStyle = "circle"
)

// Spec is the normalized render request. Fields beyond Mode and Audios are
// meaningful only for the mode that declares them.
type Spec struct {
	Mode Mode `json:"mode"`

	// Shared
	Audios         []int64 `json:"audios"`
	OutputFileName string  `json:"outputFileName,omitempty"`

	// Slideshow
	Images          []int64 `json:"images,omitempty"`
	IntervalSeconds float64 `json:"intervalSeconds,omitempty"`
	AutoTime        bool    `json:"autoTime,omitempty"`
	RepeatImages    bool    `json:"repeatImages,omitempty"`

	// Waveform
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	WaveColor       string    `json:"waveColor,omitempty"`
	WaveStyle       WaveStyle `json:"waveStyle,omitempty"`
}

// Serialize renders the spec back to its stored JSON form. Only the fields of
// the spec's own mode are emitted, so Parse(Serialize(s)) reproduces s.
func Serialize(s *Spec) ([]byte, error) {
	m := map[string]any{
		"mode":   string(s.Mode),
		"audios": s.Audios,
	}
	if s.OutputFileName != "" {
		m["outputFileName"] = s.OutputFileName
	}

	switch s.Mode {
	case ModeSlideshow:
		m["images"] = s.Images
		m["intervalSeconds"] = s.IntervalSeconds
		m["autoTime"] = s.AutoTime
		m["repeatImages"] = s.RepeatImages
	case ModeWaveform:
		m["backgroundColor"] = s.BackgroundColor
		m["waveColor"] = s.WaveColor
		m["waveStyle"] = string(s.WaveStyle)
	}

	return json.Marshal(m)
}

// Parse accepts nil, a JSON string/[]byte, a decoded map, or an existing
// *Spec, and returns a validated spec. nil and empty input return (nil, nil);
// the resolver then falls back to the job's legacy single-media columns.
func Parse(raw any) (*Spec, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *Spec:
		if v == nil {
			return nil, nil
		}
		return validate(v)
	case Spec:
		return validate(&v)
	case string:
		if v == "" {
			return nil, nil
		}
		return parseJSON([]byte(v))
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return parseJSON(v)
	case map[string]any:
		return fromMap(v)
	default:
		return nil, errors.InvalidSpec("does not match a supported shape")
	}
}

func parseJSON(data []byte) (*Spec, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.InvalidSpec("not valid JSON")
	}
	return fromMap(m)
}

func fromMap(m map[string]any) (*Spec, error) {
	if m == nil {
		return nil, nil
	}

	mode, ok := m["mode"].(string)
	if !ok {
		return nil, errors.InvalidSpec("does not match a supported shape")
	}

	s := &Spec{
		Mode:   Mode(mode),
		Audios: normalizeIDs(m["audios"]),
	}
	if name, ok := m["outputFileName"].(string); ok {
		s.OutputFileName = name
	}

	switch s.Mode {
	case ModeSlideshow:
		s.Images = normalizeIDs(m["images"])

		interval, ok := m["intervalSeconds"].(float64)
		if !ok {
			return nil, errors.InvalidSpec("does not match a supported shape")
		}
		s.IntervalSeconds = interval

		if s.AutoTime, ok = m["autoTime"].(bool); !ok {
			return nil, errors.InvalidSpec("does not match a supported shape")
		}
		if s.RepeatImages, ok = m["repeatImages"].(bool); !ok {
			return nil, errors.InvalidSpec("does not match a supported shape")
		}

	case ModeWaveform:
		bg, okBG := m["backgroundColor"].(string)
		wc, okWC := m["waveColor"].(string)
		ws, okWS := m["waveStyle"].(string)
		if !okBG || !okWC || !okWS {
			return nil, errors.InvalidSpec("does not match a supported shape")
		}
		s.BackgroundColor = bg
		s.WaveColor = wc
		s.WaveStyle = WaveStyle(ws)

	default:
		return nil, errors.InvalidSpec("does not match a supported shape")
	}

	return validate(s)
}

func validate(s *Spec) (*Spec, error) {
	if len(s.Audios) == 0 {
		return nil, errors.InvalidSpec("audio list must not be empty")
	}

	switch s.Mode {
	case ModeSlideshow:
		if len(s.Images) == 0 {
			return nil, errors.InvalidSpec("slideshow requires a non-empty image list")
		}
	case ModeWaveform:
		switch s.WaveStyle {
		case WaveLine, WaveBars, WaveCircle:
		default:
			return nil, errors.InvalidSpec("does not match a supported shape")
		}
	default:
		return nil, errors.InvalidSpec("does not match a supported shape")
	}

	return s, nil
}

// normalizeIDs coerces a decoded JSON array into a unique list of finite
// integers. Duplicates are silently removed and non-numeric entries dropped;
// order of first appearance is preserved so encode order stays deterministic.
func normalizeIDs(raw any) []int64 {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	seen := make(map[int64]bool, len(items))
	out := make([]int64, 0, len(items))
	for _, item := range items {
		var id int64
		switch n := item.(type) {
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				continue
			}
			id = int64(n)
		case int64:
			id = n
		case int:
			id = int64(n)
		default:
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

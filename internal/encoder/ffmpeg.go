// Package encoder drives ffmpeg and ffprobe as subprocesses. Every invocation
// is judged by exit code alone; stderr is captured for diagnostics only.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"driftcast/internal/pkg/errors"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/renderspec"
)

// FFmpeg locates the encoder binaries once and runs them per call.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	log         *logger.Logger
}

func New(log *logger.Logger) (*FFmpeg, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	if log == nil {
		log = logger.NewDefault()
	}

	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log.WithComponent("encoder"),
	}, nil
}

// ProbeDuration returns the media duration in seconds.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath, probeDurationArgs(path)...)

	out, err := cmd.Output()
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.CodeEncodeFailed, "encoder.probe", "ffprobe failed")
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, errors.WrapWithCode(err, errors.CodeEncodeFailed, "encoder.probe", "ffprobe output not parseable")
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.CodeEncodeFailed, "encoder.probe", "ffprobe reported no duration")
	}
	return seconds, nil
}

// ConcatAudio joins the inputs into one continuous stream via the concat
// demuxer. A list file is written next to the output and removed afterwards.
func (f *FFmpeg) ConcatAudio(ctx context.Context, inputs []string, out string) error {
	listPath, err := writeConcatList(inputs, out+".list")
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeEncodeFailed, "encoder.concat_audio", "failed to write concat list")
	}
	defer os.Remove(listPath)

	return f.run(ctx, "concat_audio", concatAudioArgs(listPath, out))
}

// StillSegment renders one image as a fixed-duration video segment.
func (f *FFmpeg) StillSegment(ctx context.Context, image string, seconds float64, out string) error {
	return f.run(ctx, "still_segment", stillSegmentArgs(image, seconds, out))
}

// ConcatSegments losslessly concatenates already-encoded segments.
func (f *FFmpeg) ConcatSegments(ctx context.Context, segments []string, out string) error {
	listPath, err := writeConcatList(segments, out+".list")
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeEncodeFailed, "encoder.concat_segments", "failed to write concat list")
	}
	defer os.Remove(listPath)

	return f.run(ctx, "concat_segments", concatSegmentsArgs(listPath, out))
}

// Mux combines a video and an audio stream into the final file. The video is
// re-encoded: stream-copying sparse still segments drops or misaligns frames.
// Audio is copied only when its container is already mux-compatible.
func (f *FFmpeg) Mux(ctx context.Context, video, audio, out string) error {
	return f.run(ctx, "mux", muxArgs(video, audio, out))
}

// WaveformOpts sizes and colors the waveform visualization.
type WaveformOpts struct {
	BackgroundColor string
	WaveColor       string
	Style           renderspec.WaveStyle
	Width           int
	Height          int
}

// Waveform renders audio amplitude into a video in a single pass, composited
// onto a solid background and muxed with the original audio.
func (f *FFmpeg) Waveform(ctx context.Context, audio string, opts WaveformOpts, out string) error {
	return f.run(ctx, "waveform", waveformArgs(audio, opts, out))
}

func (f *FFmpeg) run(ctx context.Context, op string, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.log.Debug("running ffmpeg", "op", op, "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		f.log.Error("ffmpeg failed", "op", op, "stderr", tail(stderr.String(), 2000))
		return errors.WrapWithCode(err, errors.CodeEncodeFailed, "encoder."+op,
			fmt.Sprintf("ffmpeg %s exited non-zero", op))
	}
	return nil
}

// writeConcatList writes the concat demuxer input list. Paths are quoted per
// the demuxer's escaping rules.
func writeConcatList(inputs []string, listPath string) (string, error) {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return listPath, nil
}

func probeDurationArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
}

func concatAudioArgs(listPath, out string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:a", "pcm_s16le",
		out,
	}
}

func stillSegmentArgs(image string, seconds float64, out string) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-t", formatSeconds(seconds),
		"-i", image,
		"-vf", "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2,setsar=1",
		"-r", "30",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	}
}

func concatSegmentsArgs(listPath, out string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		out,
	}
}

func muxArgs(video, audio, out string) []string {
	audioCodec := "aac"
	if copyCompatibleAudio(audio) {
		audioCodec = "copy"
	}

	return []string{
		"-y",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", audioCodec,
		"-shortest",
		out,
	}
}

// copyCompatibleAudio reports whether the audio can be stream-copied into an
// mp4 container without re-encoding.
func copyCompatibleAudio(audio string) bool {
	switch strings.ToLower(filepath.Ext(audio)) {
	case ".aac", ".m4a", ".mp3":
		return true
	default:
		return false
	}
}

func waveformArgs(audio string, opts WaveformOpts, out string) []string {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}

	size := fmt.Sprintf("%dx%d", opts.Width, opts.Height)

	var viz string
	switch opts.Style {
	case renderspec.WaveBars:
		viz = fmt.Sprintf("showwaves=s=%s:mode=cline:colors=%s", size, opts.WaveColor)
	case renderspec.WaveCircle:
		viz = fmt.Sprintf("avectorscope=s=%s:draw=line:bc=%s", size, opts.WaveColor)
	default:
		viz = fmt.Sprintf("showwaves=s=%s:mode=line:colors=%s", size, opts.WaveColor)
	}

	filter := fmt.Sprintf(
		"color=c=%s:s=%s[bg];[0:a]%s[viz];[bg][viz]overlay=format=auto:shortest=1",
		opts.BackgroundColor, size, viz,
	)

	return []string{
		"-y",
		"-i", audio,
		"-filter_complex", filter,
		"-map", "0:a",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		out,
	}
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

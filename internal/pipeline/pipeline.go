// Package pipeline turns a claimed render job into an uploaded video: resolve
// media, download to a job-scoped scratch directory, encode per the spec's
// mode, upload the result, and record the outcome on the job.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"driftcast/internal/encoder"
	"driftcast/internal/media"
	"driftcast/internal/models"
	"driftcast/internal/pkg/errors"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/ports"
	"driftcast/internal/renderspec"
)

// JobStore is the slice of the render-job repository the pipeline needs. The
// claim transition itself belongs to dispatch; the pipeline only reports
// progress and terminal status.
type JobStore interface {
	MarkRunning(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, message string) error
	CompleteWithOutput(ctx context.Context, jobID string, output models.MediaItem) (int64, error)
}

// Encoder is the external encoder collaborator surface.
type Encoder interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ConcatAudio(ctx context.Context, inputs []string, out string) error
	StillSegment(ctx context.Context, image string, seconds float64, out string) error
	ConcatSegments(ctx context.Context, segments []string, out string) error
	Mux(ctx context.Context, video, audio, out string) error
	Waveform(ctx context.Context, audio string, opts encoder.WaveformOpts, out string) error
}

type Deps struct {
	Jobs           JobStore
	Media          media.Store
	Storage        ports.RemoteStorage
	Enc            Encoder
	ScratchRoot    string
	UploadFolderID string
	Log            *logger.Logger
}

type Pipeline struct {
	jobs           JobStore
	media          media.Store
	storage        ports.RemoteStorage
	enc            Encoder
	scratchRoot    string
	uploadFolderID string
	log            *logger.Logger
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Pipeline{
		jobs:           d.Jobs,
		media:          d.Media,
		storage:        d.Storage,
		enc:            d.Enc,
		scratchRoot:    d.ScratchRoot,
		uploadFolderID: d.UploadFolderID,
		log:            log.WithComponent("pipeline"),
	}
}

// Run processes one job end to end. A job that already has an output media
// item is complete; re-invocation is a no-op so a duplicate claim after a
// crash cannot double-render.
func (p *Pipeline) Run(ctx context.Context, job *models.RenderJob) error {
	log := p.log.FromContext(ctx).WithJobID(job.ID)

	if job.OutputMediaItemID != nil {
		log.Info("job already has an output, skipping", "output_media_item_id", *job.OutputMediaItemID)
		return nil
	}

	if err := p.jobs.MarkRunning(ctx, job.ID); err != nil {
		return p.fail(ctx, job.ID, errors.Wrap(err, "pipeline.status", "failed to mark job running"))
	}

	scratch := newScratch(filepath.Join(p.scratchRoot, "jobs", job.ID))
	defer scratch.cleanup(log)

	if err := p.render(ctx, log, job, scratch); err != nil {
		return p.fail(ctx, job.ID, err)
	}

	log.Info("job completed")
	return nil
}

func (p *Pipeline) render(ctx context.Context, log *logger.Logger, job *models.RenderJob, scratch *scratchDir) error {
	resolved, err := media.Resolve(ctx, p.media, job, nil)
	if err != nil {
		return err
	}

	spec := resolved.Spec
	if spec == nil {
		// Legacy jobs carry single-media columns and no spec; they render as
		// a plain slideshow.
		spec = &renderspec.Spec{Mode: renderspec.ModeSlideshow, IntervalSeconds: 5}
	}

	if err := scratch.mkdir(); err != nil {
		return errors.Wrap(err, "pipeline.scratch", "failed to create scratch directory")
	}

	audioPaths, err := p.downloadAll(ctx, resolved.AudioItems, scratch, "audio")
	if err != nil {
		return err
	}
	imagePaths, err := p.downloadAll(ctx, resolved.ImageItems, scratch, "image")
	if err != nil {
		return err
	}

	audioPath := audioPaths[0]
	if len(audioPaths) > 1 {
		combined := scratch.path("audio_all.wav")
		scratch.record(combined)
		if err := p.enc.ConcatAudio(ctx, audioPaths, combined); err != nil {
			return err
		}
		audioPath = combined
	}

	finalPath := scratch.path("render.mp4")
	scratch.record(finalPath)

	switch spec.Mode {
	case renderspec.ModeWaveform:
		err = p.enc.Waveform(ctx, audioPath, encoder.WaveformOpts{
			BackgroundColor: spec.BackgroundColor,
			WaveColor:       spec.WaveColor,
			Style:           spec.WaveStyle,
		}, finalPath)
		if err != nil {
			return err
		}

	default:
		audioSeconds, probeErr := p.enc.ProbeDuration(ctx, audioPath)
		if probeErr != nil {
			// Probe failure is not fatal: the timeline falls back to
			// interval * imageCount.
			log.Warn("audio duration probe failed", "error", probeErr.Error())
			audioSeconds = 0
		}

		if err := p.renderSlideshow(ctx, spec, imagePaths, audioPath, audioSeconds, finalPath, scratch); err != nil {
			return err
		}
	}

	entry, size, err := p.upload(ctx, spec, finalPath)
	if err != nil {
		return err
	}

	_, err = p.jobs.CompleteWithOutput(ctx, job.ID, models.MediaItem{
		RemoteID:  entry.ID,
		Name:      entry.Name,
		MimeType:  "video/mp4",
		SizeBytes: size,
	})
	if err != nil {
		return errors.Wrap(err, "pipeline.complete", "failed to record job output")
	}
	return nil
}

func (p *Pipeline) renderSlideshow(ctx context.Context, spec *renderspec.Spec, imagePaths []string, audioPath string, audioSeconds float64, finalPath string, scratch *scratchDir) error {
	segments := BuildTimeline(spec, len(imagePaths), audioSeconds)

	// Each timeline entry becomes its own fixed-duration segment; a single
	// pass over stills with variable durations misbehaves in the encoder.
	segmentPaths := make([]string, 0, len(segments))
	for i, seg := range segments {
		segPath := scratch.path(fmt.Sprintf("seg_%04d.mp4", i))
		scratch.record(segPath)
		if err := p.enc.StillSegment(ctx, imagePaths[seg.ImageIndex], seg.Seconds, segPath); err != nil {
			return err
		}
		segmentPaths = append(segmentPaths, segPath)
	}

	videoPath := scratch.path("video.mp4")
	scratch.record(videoPath)
	if err := p.enc.ConcatSegments(ctx, segmentPaths, videoPath); err != nil {
		return err
	}

	return p.enc.Mux(ctx, videoPath, audioPath, finalPath)
}

func (p *Pipeline) downloadAll(ctx context.Context, items []models.MediaItem, scratch *scratchDir, kind string) ([]string, error) {
	var out []string
	for i, item := range items {
		dst := scratch.path(fmt.Sprintf("%s_%02d%s", kind, i, extForMime(item.MimeType)))
		// Recorded before streaming so a mid-copy failure still gets the
		// partial file removed.
		scratch.record(dst)
		if err := p.download(ctx, item, dst); err != nil {
			return nil, err
		}
		out = append(out, dst)
	}
	return out, nil
}

func (p *Pipeline) download(ctx context.Context, item models.MediaItem, dst string) error {
	rc, err := p.storage.Download(ctx, item.RemoteID)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeDownloadFailed, "pipeline.download",
			fmt.Sprintf("failed to download media %d", item.ID))
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeDownloadFailed, "pipeline.download", "failed to create scratch file")
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return errors.WrapWithCode(err, errors.CodeDownloadFailed, "pipeline.download",
			fmt.Sprintf("failed to write media %d", item.ID))
	}
	return nil
}

func (p *Pipeline) upload(ctx context.Context, spec *renderspec.Spec, finalPath string) (ports.Entry, int64, error) {
	st, err := os.Stat(finalPath)
	if err != nil {
		return ports.Entry{}, 0, errors.WrapWithCode(err, errors.CodeUploadFailed, "pipeline.upload", "rendered file missing")
	}

	f, err := os.Open(finalPath)
	if err != nil {
		return ports.Entry{}, 0, errors.WrapWithCode(err, errors.CodeUploadFailed, "pipeline.upload", "failed to open rendered file")
	}
	defer f.Close()

	name := OutputFileName(outputBase(spec), time.Now().UTC())
	entry, err := p.storage.Upload(ctx, p.uploadFolderID, name, "video/mp4", f)
	if err != nil {
		return ports.Entry{}, 0, errors.WrapWithCode(err, errors.CodeUploadFailed, "pipeline.upload", "upload to remote storage failed")
	}
	return entry, st.Size(), nil
}

func (p *Pipeline) fail(ctx context.Context, jobID string, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	msg := errors.FirstFrame(cause)
	log.Error("job failed", "error", msg)

	if err := p.jobs.MarkFailed(ctx, jobID, msg); err != nil {
		log.Error("failed to persist job failure", "error", err.Error())
	}
	return cause
}

func outputBase(spec *renderspec.Spec) string {
	if spec != nil && spec.OutputFileName != "" {
		return spec.OutputFileName
	}
	return "render"
}

// OutputFileName derives the sanitized, timestamped upload name.
func OutputFileName(base string, now time.Time) string {
	return fmt.Sprintf("%s_%s.mp4", SanitizeFileName(base), now.Format("20060102_150405"))
}

// SanitizeFileName strips path separators and whitespace from a user-supplied
// output name.
func SanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return "render"
	}
	return s
}

func extForMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/aac":
		return ".aac"
	case "audio/ogg":
		return ".ogg"
	case "video/mp4":
		return ".mp4"
	default:
		return ""
	}
}

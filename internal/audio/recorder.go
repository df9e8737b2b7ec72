package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"whisper-stream/internal/domain"
	"whisper-stream/internal/metrics"
)

// Recorder writes normalized float chunks into a mono 16 kHz 16-bit WAV
// file. A recorder created without a path is inactive and ignores writes.
// Recorder is not safe for concurrent use.
type Recorder struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	quantizer *Quantizer

	writer    *WAVWriter
	path      string
	active    bool
	finalized bool
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used for chunk stats and warnings.
func WithRecorderLogger(logger *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorderMetrics attaches sample counters.
func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder creates a recorder. An empty path yields an inactive
// recorder; otherwise parent directories are created and the WAV file is
// opened immediately.
func NewRecorder(path string, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.quantizer = NewQuantizer(r.logger, r.metrics)

	if path == "" {
		return r, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &domain.IOError{Op: "create recording directory", Path: dir, Err: err}
		}
	}

	writer, err := CreateWAV(path, WhisperFormat)
	if err != nil {
		return nil, &domain.IOError{Op: "create recording", Path: path, Err: err}
	}

	r.writer = writer
	r.path = path
	r.active = true
	r.logger.Info("recording started", zap.String("path", path))
	return r, nil
}

// IsRecording reports whether writes currently reach a file.
func (r *Recorder) IsRecording() bool {
	return r.active && !r.finalized
}

// Path returns the destination path, empty for an inactive recorder.
func (r *Recorder) Path() string {
	return r.path
}

// State returns the session state.
func (r *Recorder) State() domain.RecordingState {
	switch {
	case r.finalized:
		return domain.RecordingStateFinalized
	case r.active && r.writer != nil:
		return domain.RecordingStateActive
	default:
		return domain.RecordingStateInactive
	}
}

// WriteChunk quantizes and appends samples in order. It is a no-op when
// the recorder is inactive or finalized. On a write error the chunk is
// abandoned and the file stays open, so the caller may retry or Finalize.
func (r *Recorder) WriteChunk(samples []float32) error {
	if r.writer == nil || r.finalized {
		return nil
	}

	minSample := float32(math.Inf(1))
	maxSample := float32(math.Inf(-1))
	nonZero := 0
	written := 0

	for _, sample := range samples {
		minSample = min(minSample, sample)
		maxSample = max(maxSample, sample)
		if sample != 0 {
			nonZero++
		}

		if err := r.writer.WriteSample(r.quantizer.Quantize(sample)); err != nil {
			r.metrics.ObserveSamples(written)
			return &domain.IOError{Op: "write recording", Path: r.path, Err: err}
		}
		written++
	}
	r.metrics.ObserveSamples(written)

	r.logger.Debug("recorded chunk",
		zap.Int("len", len(samples)),
		zap.Int("non_zero", nonZero),
		zap.Float32("min", minSample),
		zap.Float32("max", maxSample),
	)
	return nil
}

// Finalize closes the recording and returns a status message. An empty
// message with a nil error means there was nothing to do. After Finalize
// the recorder accepts no more samples; calling it again is harmless.
func (r *Recorder) Finalize() (string, error) {
	writer := r.writer
	r.writer = nil
	wasActive := r.active && !r.finalized
	r.finalized = true
	r.active = false
	hasPath := r.path != ""

	switch {
	case writer != nil && wasActive && hasPath:
		if err := writer.Finalize(); err != nil {
			return "", &domain.IOError{Op: "finalize recording", Path: r.path, Err: err}
		}
		r.logger.Info("recording finalized", zap.String("path", r.path), zap.Int("samples", writer.Samples()))
		return fmt.Sprintf("[Recording] Finished saving audio to %s", r.path), nil

	case writer != nil:
		// Close the file anyway so a half-written header is not left behind.
		r.logger.Warn("finalizing recording in inconsistent state",
			zap.String("path", r.path),
			zap.Bool("active", wasActive),
		)
		if err := writer.Finalize(); err != nil {
			return "", &domain.IOError{Op: "finalize recording", Path: writer.Path(), Err: err}
		}
		return fmt.Sprintf("[Recording] Finalized audio file at %s (state was potentially inconsistent).", writer.Path()), nil

	case wasActive && hasPath:
		r.logger.Warn("no active writer to finalize", zap.String("path", r.path))
		return fmt.Sprintf("[Recording] Attempted to finalize, but no active writer for %s. File might have been finalized or failed to open.", r.path), nil

	case wasActive:
		r.logger.Warn("recording was active without a path")
		return "[Recording] Recording was intended but path was empty and no writer; nothing saved.", nil

	default:
		return "", nil
	}
}

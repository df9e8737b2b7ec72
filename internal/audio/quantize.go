// Package audio converts normalized float frames into 16-bit PCM, pads
// segments for inference framing and records them to WAV files.
package audio

import (
	"math"

	"go.uber.org/zap"

	"whisper-stream/internal/metrics"
)

// sampleEpsilon is the float32 machine epsilon (2^-23).
const sampleEpsilon float32 = 0x1p-23

const (
	minNormalized float32 = -1.0
	maxNormalized float32 = 1.0 - sampleEpsilon
)

// Quantizer converts normalized float samples into signed 16-bit PCM.
// Scaling multiplies by math.MaxInt16 and rounds half away from zero.
type Quantizer struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewQuantizer builds a quantizer. Both arguments may be nil.
func NewQuantizer(logger *zap.Logger, m *metrics.Metrics) *Quantizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quantizer{logger: logger, metrics: m}
}

// Quantize converts one sample. NaN and infinities become 0 and are logged.
func (q *Quantizer) Quantize(sample float32) int16 {
	f64 := float64(sample)
	if math.IsNaN(f64) || math.IsInf(f64, 0) {
		if q != nil {
			q.logger.Warn("non-finite audio sample replaced with silence", zap.Float32("sample", sample))
			q.metrics.ObserveNonFinite()
		}
		sample = 0
	}

	clamped := sample
	if clamped < minNormalized {
		clamped = minNormalized
	} else if clamped > maxNormalized {
		clamped = maxNormalized
	}

	scaled := clamped * math.MaxInt16
	return int16(math.Round(float64(scaled)))
}

// QuantizeInto converts src into dst and returns the number of samples
// written, which is min(len(dst), len(src)).
func (q *Quantizer) QuantizeInto(dst []int16, src []float32) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = q.Quantize(src[i])
	}
	return n
}

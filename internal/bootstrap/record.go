package bootstrap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"whisper-stream/internal/audio"
)

const (
	// DefaultChunkSamples is 100 ms of 16 kHz audio.
	DefaultChunkSamples = 1600

	bytesPerFrame = 4
)

// RecordRequest describes one capture session fed from a raw stream of
// little-endian float32 mono 16 kHz frames.
type RecordRequest struct {
	Input      io.Reader
	OutputPath string
	// ChunkSamples is how many frames are handed to the recorder at once.
	ChunkSamples int
	// MinChunkSamples pads shorter chunks with trailing silence.
	MinChunkSamples int
}

// RecordResult summarizes a finished capture session.
type RecordResult struct {
	Path         string
	Samples      int
	Chunks       int
	DroppedBytes int
	Message      string
}

// RecordStream reads frames from req.Input until EOF or ctx is cancelled
// and saves them as a WAV file. Cancellation ends the session cleanly,
// even while a read is blocked; an input that is an io.Closer is closed
// then so the pending read returns.
func (a *App) RecordStream(ctx context.Context, req RecordRequest) (RecordResult, error) {
	ctx = ensureContext(ctx)
	if req.Input == nil {
		return RecordResult{}, fmt.Errorf("record: input stream is required")
	}
	chunkSamples := req.ChunkSamples
	if chunkSamples <= 0 {
		chunkSamples = DefaultChunkSamples
	}

	recorder, err := audio.NewRecorder(req.OutputPath,
		audio.WithRecorderLogger(a.Logger.Named("recorder")),
		audio.WithRecorderMetrics(a.Metrics),
	)
	if err != nil {
		return RecordResult{}, err
	}

	result := RecordResult{Path: recorder.Path()}
	frames := make([]float32, chunkSamples)

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	chunks := readChunks(readCtx, req.Input, chunkSamples*bytesPerFrame)

	var streamErr error
loop:
	for ctx.Err() == nil {
		var chunk rawChunk
		select {
		case <-ctx.Done():
			break loop
		case c, ok := <-chunks:
			if !ok {
				break loop
			}
			chunk = c
		}

		count := len(chunk.data) / bytesPerFrame
		if rem := len(chunk.data) % bytesPerFrame; rem != 0 {
			result.DroppedBytes += rem
			a.Logger.Warn("dropping incomplete trailing frame", zap.Int("bytes", rem))
		}

		if count > 0 {
			decodeFrames(frames[:count], chunk.data[:count*bytesPerFrame])
			segment := audio.PadSilence(frames[:count], req.MinChunkSamples)
			if err := recorder.WriteChunk(segment.Samples); err != nil {
				streamErr = err
				break
			}
			result.Samples += segment.Len()
			result.Chunks++
		}

		if chunk.err != nil {
			if !errors.Is(chunk.err, io.EOF) && !errors.Is(chunk.err, io.ErrUnexpectedEOF) {
				streamErr = fmt.Errorf("read audio stream: %w", chunk.err)
			}
			break
		}
	}

	if ctx.Err() != nil {
		a.Logger.Info("recording interrupted", zap.Int("samples", result.Samples))
		if closer, ok := req.Input.(io.Closer); ok {
			_ = closer.Close()
		}
	}

	message, finalizeErr := recorder.Finalize()
	result.Message = message
	if streamErr != nil {
		return result, errors.Join(streamErr, finalizeErr)
	}
	if finalizeErr != nil {
		return result, finalizeErr
	}
	return result, nil
}

// rawChunk is one read of up to a full chunk of frame bytes.
type rawChunk struct {
	data []byte
	err  error
}

// readChunks reads size-byte chunks from r on its own goroutine until a
// read fails or ctx is done. The channel is closed when it stops.
func readChunks(ctx context.Context, r io.Reader, size int) <-chan rawChunk {
	out := make(chan rawChunk)
	go func() {
		defer close(out)
		for {
			buf := make([]byte, size)
			n, err := io.ReadFull(r, buf)
			select {
			case out <- rawChunk{data: buf[:n], err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// decodeFrames converts little-endian float32 bytes into samples.
func decodeFrames(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*bytesPerFrame:]))
	}
}

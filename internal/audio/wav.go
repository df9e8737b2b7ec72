package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

const (
	wavHeaderSize = 44
	pcmFormatTag  = 1
	// maxDataBytes keeps the RIFF chunk size within uint32.
	maxDataBytes = math.MaxUint32 - (wavHeaderSize - 8)
)

// Format describes a linear PCM stream.
type Format struct {
	SampleRate    uint32 `json:"sampleRate"`
	Channels      uint16 `json:"channels"`
	BitsPerSample uint16 `json:"bitsPerSample"`
}

// WhisperFormat is the mono 16 kHz 16-bit layout the inference engine expects.
var WhisperFormat = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

func (f Format) blockAlign() uint16 {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) byteRate() uint32 {
	return f.SampleRate * uint32(f.blockAlign())
}

// wavHeader is the canonical 44-byte RIFF/WAVE PCM header.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

func newWAVHeader(f Format, dataBytes uint32) wavHeader {
	return wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     wavHeaderSize - 8 + dataBytes,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   pcmFormatTag,
		NumChannels:   f.Channels,
		SampleRate:    f.SampleRate,
		ByteRate:      f.byteRate(),
		BlockAlign:    f.blockAlign(),
		BitsPerSample: f.BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataBytes,
	}
}

// wavFlushBytes is how many sample bytes are buffered before a write.
const wavFlushBytes = 4096

// WAVWriter streams 16-bit PCM samples into a WAV file. The header is
// written with zero sizes on create and patched once by Finalize.
//
// A failed write drops the buffered samples and rewinds the file to the
// last sample known to be on disk, so the writer stays usable and
// Finalize still produces a valid header for what was committed.
type WAVWriter struct {
	path      string
	format    Format
	file      *os.File
	sink      io.Writer
	pending   []byte
	committed uint32
	finalized bool
}

// CreateWAV creates (or truncates) path and writes a provisional header.
func CreateWAV(path string, format Format) (*WAVWriter, error) {
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", format.BitsPerSample)
	}
	if format.Channels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("invalid format: %d channels at %d Hz", format.Channels, format.SampleRate)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := binary.Write(file, binary.LittleEndian, newWAVHeader(format, 0)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write WAV header: %w", err)
	}

	return &WAVWriter{
		path:    path,
		format:  format,
		file:    file,
		sink:    file,
		pending: make([]byte, 0, wavFlushBytes),
	}, nil
}

// Path returns the destination file path.
func (w *WAVWriter) Path() string {
	return w.path
}

// Samples returns the number of samples accepted so far, including any
// still buffered.
func (w *WAVWriter) Samples() int {
	return int((w.committed + uint32(len(w.pending))) / 2)
}

// WriteSample appends one sample. When the write that empties the buffer
// fails, every buffered sample is discarded and the error is returned.
func (w *WAVWriter) WriteSample(sample int16) error {
	if w.finalized {
		return fmt.Errorf("write to finalized WAV file %s", w.path)
	}
	if w.committed+uint32(len(w.pending)) > maxDataBytes-2 {
		return fmt.Errorf("WAV data exceeds %d bytes", uint32(maxDataBytes))
	}

	w.pending = binary.LittleEndian.AppendUint16(w.pending, uint16(sample))
	if len(w.pending) >= wavFlushBytes {
		return w.flush()
	}
	return nil
}

// flush writes buffered samples. On failure it drops them and seeks back
// to the end of the committed data.
func (w *WAVWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}

	n, err := w.sink.Write(w.pending)
	if err == nil && n < len(w.pending) {
		err = io.ErrShortWrite
	}
	w.pending = w.pending[:0]
	if err == nil {
		w.committed += uint32(n)
		return nil
	}

	if _, seekErr := w.file.Seek(int64(wavHeaderSize)+int64(w.committed), io.SeekStart); seekErr != nil {
		return errors.Join(err, fmt.Errorf("rewind after failed write: %w", seekErr))
	}
	return err
}

// Finalize flushes buffered samples, patches the header sizes and closes
// the file. The header is patched even when the last flush fails, so it
// always describes the committed samples. Calls after the first return nil
// without touching the file.
func (w *WAVWriter) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	var errs []error
	if err := w.flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush samples: %w", err))
	}
	if err := w.patchHeader(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}

func (w *WAVWriter) patchHeader() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, newWAVHeader(w.format, w.committed)); err != nil {
		return fmt.Errorf("rewrite WAV header: %w", err)
	}
	// Drop bytes a partially failed write may have left past the data.
	if err := w.file.Truncate(int64(wavHeaderSize) + int64(w.committed)); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// WAVData is a decoded 16-bit PCM WAV file.
type WAVData struct {
	Format  Format
	Samples []int16
}

// Duration returns the playback length.
func (d *WAVData) Duration() time.Duration {
	if d.Format.SampleRate == 0 || d.Format.Channels == 0 {
		return 0
	}
	frames := len(d.Samples) / int(d.Format.Channels)
	return time.Duration(frames) * time.Second / time.Duration(d.Format.SampleRate)
}

// ReadWAV reads a canonical 16-bit PCM WAV file.
func ReadWAV(path string) (*WAVData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeWAV(data)
}

// DecodeWAV decodes a canonical 16-bit PCM WAV file held in memory.
func DecodeWAV(data []byte) (*WAVData, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read WAV header: %w", err)
	}

	switch {
	case string(header.ChunkID[:]) != "RIFF":
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	case string(header.Format[:]) != "WAVE":
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	case string(header.Subchunk1ID[:]) != "fmt ":
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	case string(header.Subchunk2ID[:]) != "data":
		return nil, fmt.Errorf("invalid WAV file: missing data chunk")
	case header.AudioFormat != pcmFormatTag:
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	case header.BitsPerSample != 16:
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	payload := data[wavHeaderSize:]
	if uint64(header.Subchunk2Size) > uint64(len(payload)) {
		return nil, fmt.Errorf("WAV data chunk declares %d bytes, file holds %d", header.Subchunk2Size, len(payload))
	}

	samples := make([]int16, header.Subchunk2Size/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}

	return &WAVData{
		Format: Format{
			SampleRate:    header.SampleRate,
			Channels:      header.NumChannels,
			BitsPerSample: header.BitsPerSample,
		},
		Samples: samples,
	}, nil
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelNotFound is returned when an identifier does not name a known model.
var ErrModelNotFound = errors.New("model not found")

const huggingFaceBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Model is one of the supported whisper.cpp model variants.
type Model int

const (
	// ModelBaseEn is the default model.
	ModelBaseEn Model = iota
	ModelTinyEn
	ModelSmallEn
)

// DefaultModel is used when settings do not name a model.
const DefaultModel = ModelBaseEn

// Models returns all supported models in catalog order.
func Models() []Model {
	return []Model{ModelBaseEn, ModelTinyEn, ModelSmallEn}
}

// ParseModel looks up a model by identifier such as "base.en".
func ParseModel(id string) (Model, error) {
	switch strings.TrimSpace(id) {
	case "base.en":
		return ModelBaseEn, nil
	case "tiny.en":
		return ModelTinyEn, nil
	case "small.en":
		return ModelSmallEn, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrModelNotFound, id)
	}
}

// Name returns the identifier used on the command line and in settings.
func (m Model) Name() string {
	switch m {
	case ModelBaseEn:
		return "base.en"
	case ModelTinyEn:
		return "tiny.en"
	case ModelSmallEn:
		return "small.en"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// DisplayName returns a human-readable label.
func (m Model) DisplayName() string {
	switch m {
	case ModelBaseEn:
		return "Base (English)"
	case ModelTinyEn:
		return "Tiny (English)"
	case ModelSmallEn:
		return "Small (English)"
	default:
		return m.Name()
	}
}

// FileName returns the artifact file name inside the cache root.
func (m Model) FileName() string {
	switch m {
	case ModelBaseEn:
		return "ggml-base.en.bin"
	case ModelTinyEn:
		return "ggml-tiny.en.bin"
	case ModelSmallEn:
		return "ggml-small.en.bin"
	default:
		return ""
	}
}

// URL returns the download location of the model artifact.
func (m Model) URL() string {
	name := m.FileName()
	if name == "" {
		return ""
	}
	return huggingFaceBaseURL + name
}

// SizeLabel is an approximate download size for listings.
func (m Model) SizeLabel() string {
	switch m {
	case ModelBaseEn:
		return "~142 MB"
	case ModelTinyEn:
		return "~75 MB"
	case ModelSmallEn:
		return "~466 MB"
	default:
		return ""
	}
}

// Valid reports whether m is one of the catalog models.
func (m Model) Valid() bool {
	return m.FileName() != ""
}

func (m Model) String() string {
	return m.Name()
}

// WhisperModelOption describes one downloadable whisper.cpp model preset.
type WhisperModelOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FileName   string `json:"fileName"`
	URL        string `json:"url"`
	SizeLabel  string `json:"sizeLabel,omitempty"`
	Downloaded bool   `json:"downloaded"`
	LocalPath  string `json:"localPath,omitempty"`
}

// Option converts a model into its listing entry.
func (m Model) Option() WhisperModelOption {
	return WhisperModelOption{
		ID:        m.Name(),
		Name:      m.DisplayName(),
		FileName:  m.FileName(),
		URL:       m.URL(),
		SizeLabel: m.SizeLabel(),
	}
}

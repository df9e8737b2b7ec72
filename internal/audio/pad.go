package audio

// Segment is the result of PadSilence. When Owned is false, Samples shares
// its backing array with the input and must not be mutated; when Owned is
// true it is a fresh buffer. Callers must handle both.
type Segment struct {
	Samples []float32
	Owned   bool
}

// Len returns the number of samples in the segment.
func (s Segment) Len() int {
	return len(s.Samples)
}

// PadSilence returns segment unchanged when it already holds at least
// minLen samples. Otherwise it returns a new buffer of length minLen whose
// prefix is segment and whose tail is zero.
func PadSilence(segment []float32, minLen int) Segment {
	if len(segment) >= minLen {
		return Segment{Samples: segment}
	}

	padded := make([]float32, minLen)
	copy(padded, segment)
	return Segment{Samples: padded, Owned: true}
}

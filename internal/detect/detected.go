package detect

// DetectedQuestion is a candidate act produced by a detector. Values are
// immutable; merge adjustments construct new instances rather than
// writing through shared references.
type DetectedQuestion struct {
	Text       string
	Confidence float64
	Start      float64 // ms, within the source segment
	End        float64 // ms
	SpeakerID  string
	Category   string
}

// WithConfidence returns a copy carrying the given confidence.
func (q DetectedQuestion) WithConfidence(c float64) DetectedQuestion {
	q.Confidence = c
	return q
}

// WithCategory returns a copy carrying the given category.
func (q DetectedQuestion) WithCategory(cat string) DetectedQuestion {
	q.Category = cat
	return q
}

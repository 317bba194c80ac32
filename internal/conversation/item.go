package conversation

// Item kinds stored in conversation memory.
const (
	KindFinal  = "final"  // a committed transcript line
	KindAct    = "act"    // a detected question or imperative request
	KindAnswer = "answer" // a generated response to an act
)

// Act categories. Persisted on act items so rendering does not have to
// re-derive the question/imperative distinction from the text.
const (
	CategoryInterrogative = "Interrogative"
	CategoryImperative    = "Imperative"
)

// Item is one utterance or turn in a session. Items are never mutated
// after creation: any edit produces a new Item with the same identity
// fields, so callers can tell "changed" from "unchanged" by pointer
// identity.
type Item struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	T0          float64   `json:"t0"` // start, ms
	T1          float64   `json:"t1"` // end, ms
	Speaker     string    `json:"speaker,omitempty"`
	Kind        string    `json:"kind"`
	Category    string    `json:"category,omitempty"` // acts only
	ParentActID string    `json:"parentActId,omitempty"`
	Text        string    `json:"text"`
	TextVector  []float32 `json:"textVector,omitempty"`
}

// Equal reports value equality over all fields except TextVector. Two
// items with the same identity, timestamps, speaker, kind and text are
// equal regardless of the embedding payload.
func (it *Item) Equal(other *Item) bool {
	if it == nil || other == nil {
		return it == other
	}
	return it.ID == other.ID &&
		it.SessionID == other.SessionID &&
		it.T0 == other.T0 &&
		it.T1 == other.T1 &&
		it.Speaker == other.Speaker &&
		it.Kind == other.Kind &&
		it.Category == other.Category &&
		it.ParentActID == other.ParentActID &&
		it.Text == other.Text
}

// WithText returns a copy of the item carrying new text. The receiver is
// left untouched.
func (it *Item) WithText(text string) *Item {
	clone := *it
	clone.Text = text
	return &clone
}

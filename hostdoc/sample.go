package hostdoc

import "strings"

// FullMatchScore ranks a candidate containing the whole text above any
// token-overlap count.
const FullMatchScore = 100

// Score rates candidate text against text: FullMatchScore when it contains
// text (case-insensitive), otherwise the number of its whitespace tokens that
// occur within text.
func Score(candidate, text string) int {
	c := strings.ToLower(candidate)
	t := strings.ToLower(text)
	if strings.Contains(c, t) {
		return FullMatchScore
	}
	n := 0
	for _, tok := range strings.Fields(c) {
		if strings.Contains(t, tok) {
			n++
		}
	}
	return n
}

// Sample is one element read together with its text and geometry.
type Sample struct {
	Node    Node
	Text    string // innerText
	Value   string // see Node.Value
	Label   string // trimmed text, or aria-label when the text is empty
	Box     Rect
	Visible bool
	Score   int // Score(Text, Filter.Rank), set when Rank is non-empty
}

// Filter narrows a Sample query. The zero Filter keeps every match.
type Filter struct {
	// Contains keeps elements whose text contains this substring.
	Contains string
	// NonEmpty drops elements with empty text.
	NonEmpty bool
	// MinWidth and MinHeight keep elements strictly larger than these.
	MinWidth  float64
	MinHeight float64
	// Visible drops hidden elements.
	Visible bool
	// Rank scores each element's text against Rank, drops those scoring
	// zero and keeps only the elements tied at the highest score.
	Rank string
}

// Keep reports whether s passes every predicate of f except ranking.
func (f Filter) Keep(s Sample) bool {
	if f.NonEmpty && s.Text == "" {
		return false
	}
	if f.Contains != "" && !strings.Contains(s.Text, f.Contains) {
		return false
	}
	if s.Box.Width <= f.MinWidth && f.MinWidth > 0 {
		return false
	}
	if s.Box.Height <= f.MinHeight && f.MinHeight > 0 {
		return false
	}
	if f.Visible && !s.Visible {
		return false
	}
	return true
}

// Apply filters samples in place, in document order, and ranks them when
// f.Rank is set. Bindings that filter remotely run Apply again on the result
// so both sides agree on scoring.
func (f Filter) Apply(samples []Sample) []Sample {
	out := samples[:0]
	top := 0
	for _, s := range samples {
		if !f.Keep(s) {
			continue
		}
		if f.Rank != "" {
			s.Score = Score(s.Text, f.Rank)
			if s.Score <= 0 || s.Score < top {
				continue
			}
			if s.Score > top {
				top = s.Score
				out = out[:0]
			}
		}
		out = append(out, s)
	}
	return out
}

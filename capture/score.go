package capture

import (
	"strings"

	"github.com/hazyhaar/gjump/hostdoc"
)

// firstWordPrefix is the first up-to-n characters of the first word.
func firstWordPrefix(text string, n int) string {
	f := strings.Fields(text)
	if len(f) == 0 {
		return ""
	}
	r := []rune(f[0])
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// prefix is the first up-to-n characters of s.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

type scored struct {
	node  hostdoc.Node
	text  string
	score int
}

func candidates(samples []hostdoc.Sample) []scored {
	out := make([]scored, len(samples))
	for i, s := range samples {
		out[i] = scored{node: s.Node, text: s.Text, score: s.Score}
	}
	return out
}

// bestFirst returns the highest score, keeping the earliest on ties.
func bestFirst(cands []scored) (scored, bool) {
	var best scored
	found := false
	for _, c := range cands {
		if c.score <= 0 {
			continue
		}
		if !found || c.score > best.score {
			best, found = c, true
		}
	}
	return best, found
}

// bestTightest returns the highest score; on ties the candidate with the
// shortest text wins, then the later one in document order.
func bestTightest(cands []scored) (scored, bool) {
	var best scored
	found := false
	for _, c := range cands {
		if c.score <= 0 {
			continue
		}
		switch {
		case !found, c.score > best.score:
			best, found = c, true
		case c.score == best.score && len(c.text) <= len(best.text):
			best = c
		}
	}
	return best, found
}

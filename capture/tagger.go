package capture

import (
	"regexp"

	"github.com/hazyhaar/gjump/hostdoc"
	"github.com/hazyhaar/gjump/idgen"
)

// Tagger attaches identity tags to host nodes. A tag is set once and never
// reassigned; tags live in the host document only.
type Tagger struct {
	depth   int
	wrapper *regexp.Regexp
	newID   idgen.Generator
}

// NewTagger creates a Tagger that climbs at most depth levels looking for a
// message wrapper whose class matches wrapperPattern.
func NewTagger(depth int, wrapperPattern string, gen idgen.Generator) (*Tagger, error) {
	if depth <= 0 {
		depth = DefaultAncestorDepth
	}
	if wrapperPattern == "" {
		wrapperPattern = DefaultWrapperPattern
	}
	re, err := compileVocab("wrapper", wrapperPattern)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		gen = idgen.Prefixed("gj_", idgen.UUIDv7())
	}
	return &Tagger{depth: depth, wrapper: re, newID: gen}, nil
}

// EnsureIdentity returns the identity of n, tagging the nearest message
// wrapper (or n itself) when needed. A nil node yields "".
func (t *Tagger) EnsureIdentity(n hostdoc.Node) string {
	if n == nil {
		return ""
	}
	if id := n.Attr(hostdoc.AttrIdentity); id != "" {
		return id
	}

	target := t.wrapperOf(n)
	if id := target.Attr(hostdoc.AttrIdentity); id != "" {
		return id
	}
	id := t.newID()
	if err := target.SetAttr(hostdoc.AttrIdentity, id); err != nil {
		return ""
	}
	return id
}

// wrapperOf walks from n through at most depth elements and returns the
// first that looks like a message container, or n.
func (t *Tagger) wrapperOf(n hostdoc.Node) hostdoc.Node {
	cur := n
	for i := 0; i < t.depth && cur != nil; i++ {
		if t.isWrapper(cur) {
			return cur
		}
		cur = cur.Parent()
	}
	return n
}

func (t *Tagger) isWrapper(n hostdoc.Node) bool {
	if n.Attr("role") == "article" {
		return true
	}
	class := n.Attr("class")
	return class != "" && t.wrapper.MatchString(class)
}

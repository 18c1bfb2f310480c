// CLAUDE:SUMMARY Capture engine config, defaults and sentinel errors; the engine turns host submissions into Entry Log records.
// Package capture detects user submissions in a live host document, ties
// each one to the node that renders it, and relocates logged entries later.
//
// All engine state (the entry log, pending deferred tasks, listener markers
// and identity tags) is confined to the goroutine running Engine.Run.
// Exported Engine methods other than Run post work into that loop.
package capture

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrNotFound is returned when an entry's node cannot be located.
	ErrNotFound = errors.New("capture: node not found")
	// ErrUnknownEntry is returned for an id absent from the log.
	ErrUnknownEntry = errors.New("capture: unknown entry")
	// ErrStopped is returned when the engine loop is not running.
	ErrStopped = errors.New("capture: engine stopped")
)

// Default heuristics.
const (
	DefaultKeySettle          = 250 * time.Millisecond
	DefaultClickSettle        = 300 * time.Millisecond
	DefaultRescanInterval     = time.Second
	DefaultHighlightDuration  = 2000 * time.Millisecond
	DefaultAncestorDepth      = 6
	DefaultMaxInsertChars     = 500
	DefaultTopFraction        = 0.2
	DefaultMinInsertWidth     = 60
	DefaultComposerPrefix     = 80
	DefaultWordPrefix         = 10
	DefaultTriggerVocabulary  = `send|submit|reply|ask|enter|发送|提交|envoyer|enviar|senden|invia|送信|전송|отправить`
	DefaultWrapperPattern     = `message|msg|bubble|turn|conversation`
	DefaultAuthoredVocabulary = `you|user|self|sender`
	DefaultNotFoundNotice     = "could not locate the original message; the page may have re-rendered it"
)

// Settings holds the tunable heuristics. Zero fields take the defaults.
type Settings struct {
	KeySettle         time.Duration `yaml:"key_settle"`
	ClickSettle       time.Duration `yaml:"click_settle"`
	RescanInterval    time.Duration `yaml:"rescan_interval"`
	HighlightDuration time.Duration `yaml:"highlight_duration"`

	// AncestorDepth bounds the wrapper search of the identity tagger.
	AncestorDepth int `yaml:"ancestor_depth"`
	// MaxInsertChars skips inserted nodes with longer text.
	MaxInsertChars int `yaml:"max_insert_chars"`
	// TopFraction skips inserted nodes in the top fraction of the viewport.
	TopFraction float64 `yaml:"top_fraction"`
	// MinInsertWidth skips narrow inserted nodes.
	MinInsertWidth float64 `yaml:"min_insert_width"`
	// ComposerPrefix is how much composer text an inserted node must contain.
	ComposerPrefix int `yaml:"composer_prefix"`
	// WordPrefix is how much of the first word a correlation candidate must contain.
	WordPrefix int `yaml:"word_prefix"`

	TriggerVocabulary  string `yaml:"trigger_vocabulary"`
	WrapperPattern     string `yaml:"wrapper_pattern"`
	AuthoredVocabulary string `yaml:"authored_vocabulary"`
	NotFoundNotice     string `yaml:"not_found_notice"`
}

// Defaults fills zero fields.
func (s *Settings) Defaults() {
	if s.KeySettle <= 0 {
		s.KeySettle = DefaultKeySettle
	}
	if s.ClickSettle <= 0 {
		s.ClickSettle = DefaultClickSettle
	}
	if s.RescanInterval <= 0 {
		s.RescanInterval = DefaultRescanInterval
	}
	if s.HighlightDuration <= 0 {
		s.HighlightDuration = DefaultHighlightDuration
	}
	if s.AncestorDepth <= 0 {
		s.AncestorDepth = DefaultAncestorDepth
	}
	if s.MaxInsertChars <= 0 {
		s.MaxInsertChars = DefaultMaxInsertChars
	}
	if s.TopFraction <= 0 {
		s.TopFraction = DefaultTopFraction
	}
	if s.MinInsertWidth <= 0 {
		s.MinInsertWidth = DefaultMinInsertWidth
	}
	if s.ComposerPrefix <= 0 {
		s.ComposerPrefix = DefaultComposerPrefix
	}
	if s.WordPrefix <= 0 {
		s.WordPrefix = DefaultWordPrefix
	}
	if s.TriggerVocabulary == "" {
		s.TriggerVocabulary = DefaultTriggerVocabulary
	}
	if s.WrapperPattern == "" {
		s.WrapperPattern = DefaultWrapperPattern
	}
	if s.AuthoredVocabulary == "" {
		s.AuthoredVocabulary = DefaultAuthoredVocabulary
	}
	if s.NotFoundNotice == "" {
		s.NotFoundNotice = DefaultNotFoundNotice
	}
}

// compileVocab builds a case-insensitive matcher from an alternation.
func compileVocab(name, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)(?:" + pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("capture: %s pattern: %w", name, err)
	}
	return re, nil
}

// Package idgen provides pluggable ID generation for gjump.
//
// Identity tags and entry IDs are produced by a Generator chosen at startup,
// so tests can swap in a deterministic sequence.
package idgen

import (
	"crypto/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoID returns a Generator that produces random base-36 IDs of the given length.
func NanoID(length int) Generator {
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// Compact returns a Generator producing "<base36 epoch ms>_<random>" where the
// random part has n characters. Short enough to live in a DOM attribute, and
// the time prefix keeps IDs roughly sortable within a page session.
func Compact(n int) Generator {
	random := NanoID(n)
	return func() string {
		return strconv.FormatInt(time.Now().UnixMilli(), 36) + "_" + random()
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a deterministic Generator yielding prefix1, prefix2, ...
// It is not safe for concurrent use.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

// Default is UUIDv7: time-sortable, globally unique.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

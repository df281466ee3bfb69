// Package textutil holds small string helpers used to scrape values out of
// HTML and script fragments without a full parser.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Comparison selects how delimiters are matched against the source.
type Comparison int

const (
	// Exact matches delimiters byte for byte.
	Exact Comparison = iota
	// IgnoreCase matches delimiters using Unicode simple case folding.
	IgnoreCase
)

type options struct {
	start      int
	comparison Comparison
	notFound   string
}

// Option tunes a single Between call.
type Option func(*options)

// From starts the search for the left delimiter at byte offset i.
func From(i int) Option {
	return func(o *options) { o.start = i }
}

// Compare sets the delimiter comparison mode.
func Compare(c Comparison) Option {
	return func(o *options) { o.comparison = c }
}

// Default sets the value returned when nothing is extracted.
func Default(v string) Option {
	return func(o *options) { o.notFound = v }
}

// Between returns the text strictly between the first occurrence of left
// (at or after the start offset) and the first occurrence of right after it.
//
// When source, left or right is empty, the start offset is outside
// [0, len(source)), or either delimiter is missing, Between returns the
// not-found value and false.
//
//	id, ok := textutil.Between(body, `startUpload("`, `",`)
func Between(source, left, right string, opts ...Option) (string, bool) {
	o := options{comparison: Exact}
	for _, opt := range opts {
		opt(&o)
	}

	if source == "" || left == "" || right == "" || o.start < 0 || o.start >= len(source) {
		return o.notFound, false
	}

	_, leftEnd := o.index(source, left, o.start)
	if leftEnd < 0 {
		return o.notFound, false
	}

	rightBegin, _ := o.index(source, right, leftEnd)
	if rightBegin < 0 {
		return o.notFound, false
	}

	return source[leftEnd:rightBegin], true
}

// index returns the byte span of the first match of sub in s at or after from,
// or (-1, -1).
func (o options) index(s, sub string, from int) (int, int) {
	if from > len(s) {
		return -1, -1
	}
	if o.comparison == IgnoreCase {
		return indexFold(s, sub, from)
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1, -1
	}
	return from + i, from + i + len(sub)
}

// indexFold is strings.Index under simple case folding. The matched span in s
// may differ in byte length from sub.
func indexFold(s, sub string, from int) (int, int) {
	for i := from; i < len(s); {
		if n := prefixFold(s[i:], sub); n >= 0 {
			return i, i + n
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// prefixFold reports how many bytes of s match prefix under case folding,
// or -1 if s does not start with prefix.
func prefixFold(s, prefix string) int {
	n := 0
	for _, pr := range prefix {
		if n >= len(s) {
			return -1
		}
		sr, size := utf8.DecodeRuneInString(s[n:])
		if !equalFold(sr, pr) {
			return -1
		}
		n += size
	}
	return n
}

func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}

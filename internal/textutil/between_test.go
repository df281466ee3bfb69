package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBetweenExtractsFirstQualifyingSpan(t *testing.T) {
	got, ok := Between(`ab startUpload("XYZ", more`, `startUpload("`, `",`)
	assert.True(t, ok)
	assert.Equal(t, "XYZ", got)

	got, ok = Between("<b>one</b><b>two</b>", "<b>", "</b>")
	assert.True(t, ok)
	assert.Equal(t, "one", got)
}

func TestBetweenEmptySpan(t *testing.T) {
	got, ok := Between("[]", "[", "]")
	assert.True(t, ok)
	assert.Equal(t, "", got)
}

func TestBetweenRightMustFollowLeft(t *testing.T) {
	// "]" before "[" is ignored; the search resumes after the left match.
	got, ok := Between("] x [value] y", "[", "]")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	// Left and right share characters but must not overlap.
	got, ok = Between("aXa", "a", "a")
	assert.True(t, ok)
	assert.Equal(t, "X", got)
}

func TestBetweenNotFound(t *testing.T) {
	tests := []struct {
		name              string
		source, left, rgt string
		opts              []Option
	}{
		{name: "empty source", source: "", left: "a", rgt: "b"},
		{name: "empty left", source: "abc", left: "", rgt: "c"},
		{name: "empty right", source: "abc", left: "a", rgt: ""},
		{name: "missing left", source: "abc", left: "x", rgt: "c"},
		{name: "missing right", source: "abc", left: "a", rgt: "x"},
		{name: "right only before left", source: "c..a", left: "a", rgt: "c"},
		{name: "start at len", source: "abc", left: "a", rgt: "c", opts: []Option{From(3)}},
		{name: "start past len", source: "abc", left: "a", rgt: "c", opts: []Option{From(10)}},
		{name: "negative start", source: "abc", left: "a", rgt: "c", opts: []Option{From(-1)}},
		{name: "start after left", source: "abc", left: "a", rgt: "c", opts: []Option{From(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Between(tt.source, tt.left, tt.rgt, tt.opts...)
			assert.False(t, ok)
			assert.Equal(t, "", got)
		})
	}
}

func TestBetweenDefaultValue(t *testing.T) {
	got, ok := Between("", "a", "b", Default("n/a"))
	assert.False(t, ok)
	assert.Equal(t, "n/a", got)

	got, ok = Between("a1b", "a", "b", Default("n/a"))
	assert.True(t, ok)
	assert.Equal(t, "1", got)
}

func TestBetweenFrom(t *testing.T) {
	src := "<i>1</i><i>2</i>"
	got, ok := Between(src, "<i>", "</i>", From(1))
	assert.True(t, ok)
	assert.Equal(t, "2", got)

	got, ok = Between(src, "<i>", "</i>", From(0))
	assert.True(t, ok)
	assert.Equal(t, "1", got)
}

func TestBetweenIgnoreCase(t *testing.T) {
	src := `<A HREF="https://example.com/x">`
	_, ok := Between(src, `<a href="`, `">`)
	assert.False(t, ok)

	got, ok := Between(src, `<a href="`, `">`, Compare(IgnoreCase))
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/x", got)

	got, ok = Between("ФАЙЛ:abc;", "файл:", ";", Compare(IgnoreCase))
	assert.True(t, ok)
	assert.Equal(t, "abc", got)
}

func TestBetweenMultibyteDelimiters(t *testing.T) {
	body := `<p>Файл можно увидеть здесь:<br /><a href="https://host/files/abc123">link</a></p>`
	got, ok := Between(body, `Файл можно увидеть здесь:<br /><a href="`, `">`)
	assert.True(t, ok)
	assert.Equal(t, "https://host/files/abc123", got)
}

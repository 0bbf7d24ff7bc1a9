package indenter

import (
	"strings"
)

// Builder accumulates a nested, indented rendering of a structure.
// Nested renderings produced by other String methods are re-indented
// on insertion, so builders never share state and may be used concurrently.
type Builder struct {
	buf strings.Builder
}

const unit = "  "

func Indenter() *Builder {
	return &Builder{}
}

func (b *Builder) Start(str string) *Builder {
	b.buf.WriteString(str)
	return b
}

func (b *Builder) NestStrings(strs ...string) *Builder {
	return b.NestStringsSep("", strs...)
}

func (b *Builder) NestStringsSep(sep string, strs ...string) *Builder {
	thunks := make([]func() string, len(strs))
	for i, s := range strs {
		s := s
		thunks[i] = func() string { return s }
	}
	return b.NestThunkedSep(sep, thunks...)
}

func (b *Builder) NestThunked(strs ...func() string) *Builder {
	return b.NestThunkedSep("", strs...)
}

// NestThunkedSep places every rendering on its own indented line, separated by sep.
// A single rendering is kept inline.
func (b *Builder) NestThunkedSep(sep string, strs ...func() string) *Builder {
	switch len(strs) {
	case 0:
		return b
	case 1:
		b.buf.WriteString(strs[0]())
		return b
	}

	for i, str := range strs {
		b.buf.WriteString("\n" + unit)
		b.buf.WriteString(strings.ReplaceAll(str(), "\n", "\n"+unit))
		if i < len(strs)-1 {
			b.buf.WriteString(sep)
		}
	}
	b.buf.WriteString("\n")
	return b
}

func (b *Builder) End(str string) string {
	b.buf.WriteString(str)
	return b.buf.String()
}

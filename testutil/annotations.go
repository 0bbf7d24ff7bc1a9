package testutil

import (
	"fmt"
	"go/token"

	"golang.org/x/tools/go/expect"
)

const (
	// id_FINDING marks a line on which a finding is expected. Its single
	// argument is the rule, given as an identifier or a string.
	id_FINDING = "finding"
	// id_SAFE marks a line on which no finding may be reported.
	id_SAFE = "safe"
)

type Annotation interface {
	String() string
	Note() *expect.Note
	Position() token.Position
}

type basicAnnotation struct {
	note *expect.Note
	pos  token.Position
}

func (a basicAnnotation) Note() *expect.Note       { return a.note }
func (a basicAnnotation) Position() token.Position { return a.pos }

type AnnFinding struct {
	basicAnnotation
	Rule string
}

func (a AnnFinding) String() string {
	return fmt.Sprintf("%s(%s) at %s", id_FINDING, a.Rule, a.pos)
}

type AnnSafe struct {
	basicAnnotation
}

func (a AnnSafe) String() string {
	return fmt.Sprintf("%s at %s", id_SAFE, a.pos)
}

// Convert expect.Identifier or string arguments to string.
func argToStr(x interface{}) string {
	switch x := x.(type) {
	case expect.Identifier:
		return string(x)
	case string:
		return x
	}
	panic(fmt.Sprintf("unexpected annotation argument %v", x))
}

func (mgr NotesManager) CreateAnnotation(note *expect.Note) Annotation {
	basic := basicAnnotation{note, mgr.fset.Position(note.Pos)}
	switch note.Name {
	case id_FINDING:
		if len(note.Args) != 1 {
			panic(fmt.Sprintf("%s: %s expects exactly one rule", basic.pos, id_FINDING))
		}
		return AnnFinding{basic, argToStr(note.Args[0])}
	case id_SAFE:
		return AnnSafe{basic}
	}
	panic(fmt.Sprintf("%s: unknown annotation %s", basic.pos, note.Name))
}

package testutil

import (
	"fmt"
	"go/token"
	"sort"
	"strings"
	"testing"

	"github.com/cs-au-dk/symbex/analysis/check"

	"golang.org/x/tools/go/expect"
)

type NotesManager struct {
	fset  *token.FileSet
	anns  map[*expect.Note]Annotation
	notes []*expect.Note
}

func MakeNotesManager(t *testing.T, loadRes LoadResult) (n NotesManager) {
	n.fset = loadRes.Prog.Fset
	n.anns = make(map[*expect.Note]Annotation)

	for _, file := range loadRes.MainPkg.Syntax {
		notes, err := expect.ExtractGo(n.fset, file)
		if err != nil {
			t.Fatal(err)
		}

		n.notes = append(n.notes, notes...)
	}

	for _, note := range n.notes {
		n.anns[note] = n.CreateAnnotation(note)
	}
	return
}

func (n NotesManager) Notes() []*expect.Note {
	return n.notes
}

func (n NotesManager) AnnotationOf(note *expect.Note) Annotation {
	return n.anns[note]
}

func (n NotesManager) String() (str string) {
	str = "Note manager found the following notes:\n\n"
	for _, note := range n.notes {
		str += "- " + n.anns[note].String() + "\n"
	}
	return
}

type lineKey struct {
	file string
	line int
}

func keyOf(pos token.Position) lineKey {
	return lineKey{pos.Filename, pos.Line}
}

// CheckFindings compares findings against the annotations of the source.
// Every finding annotation must be matched by a finding of its rule on the
// same line, and every finding must be matched by an annotation. Lines
// marked safe must not carry findings of any rule.
func (n NotesManager) CheckFindings(t *testing.T, findings []check.Finding) {
	t.Helper()

	expected := make(map[lineKey]map[string]bool)
	safe := make(map[lineKey]bool)
	for _, note := range n.notes {
		switch ann := n.anns[note].(type) {
		case AnnFinding:
			k := keyOf(ann.Position())
			if expected[k] == nil {
				expected[k] = make(map[string]bool)
			}
			expected[k][ann.Rule] = true
		case AnnSafe:
			safe[keyOf(ann.Position())] = true
		}
	}

	var errs []string
	found := make(map[lineKey]map[string]bool)
	for _, f := range findings {
		k := keyOf(f.Pos)
		if found[k] == nil {
			found[k] = make(map[string]bool)
		}
		found[k][f.Rule] = true

		switch {
		case safe[k]:
			errs = append(errs, fmt.Sprintf("finding on a line marked safe: %s", f))
		case !expected[k][f.Rule]:
			errs = append(errs, fmt.Sprintf("unexpected finding: %s", f))
		}
	}

	for k, rules := range expected {
		for rule := range rules {
			if !found[k][rule] {
				errs = append(errs, fmt.Sprintf("missing finding: [%s] at %s:%d", rule, k.file, k.line))
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		t.Error(strings.Join(errs, "\n"))
	}
}

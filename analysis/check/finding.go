package check

import (
	"fmt"
	"go/token"
	"sort"
	"strings"

	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	Rule  func(...interface{}) string
	Pos   func(...interface{}) string
	Fault func(...interface{}) string
}{
	Rule: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
	Pos: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.Faint).SprintFunc())(is...)
	},
	Fault: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed).SprintFunc())(is...)
	},
}

// Finding is a defect reported by a detector. Findings are located at the
// source location of a program point, independent of loop iterations.
type Finding struct {
	Rule     string
	Point    defs.ProgramPoint
	Pos      token.Position
	Template string
	Args     []string
}

func (f Finding) Message() string {
	args := make([]interface{}, len(f.Args))
	for i, a := range f.Args {
		args[i] = a
	}
	return fmt.Sprintf(f.Template, args...)
}

func (f Finding) key() string {
	return fmt.Sprintf("%s|%v|%s|%s", f.Rule, f.Point, f.Template, strings.Join(f.Args, "\x00"))
}

func (f Finding) Less(o Finding) bool {
	switch {
	case f.Point != o.Point:
		return f.Point.Less(o.Point)
	case f.Rule != o.Rule:
		return f.Rule < o.Rule
	}
	return f.Message() < o.Message()
}

func (f Finding) String() string {
	pos := "-"
	if f.Pos.IsValid() {
		pos = f.Pos.String()
	}
	return fmt.Sprintf("%s: [%s] %s", colorize.Pos(pos), colorize.Rule(f.Rule), f.Message())
}

// FindingSet is a sorted collection of distinct findings.
type FindingSet struct {
	fs []Finding
}

func NewFindingSet(fs ...Finding) FindingSet {
	return FindingSet{}.Add(fs...)
}

// Add returns the union of the set and the given findings.
func (s FindingSet) Add(fs ...Finding) FindingSet {
	if len(fs) == 0 {
		return s
	}
	seen := make(map[string]bool, len(s.fs)+len(fs))
	res := make([]Finding, 0, len(s.fs)+len(fs))
	for _, f := range append(s.fs[:len(s.fs):len(s.fs)], fs...) {
		if k := f.key(); !seen[k] {
			seen[k] = true
			res = append(res, f)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Less(res[j]) })
	return FindingSet{res}
}

func (s FindingSet) Len() int { return len(s.fs) }

// List returns the findings in order. The slice must not be modified.
func (s FindingSet) List() []Finding { return s.fs }

// Rule lists the findings of one rule.
func (s FindingSet) Rule(rule string) (res []Finding) {
	for _, f := range s.fs {
		if f.Rule == rule {
			res = append(res, f)
		}
	}
	return
}

func (s FindingSet) Equal(o FindingSet) bool {
	if len(s.fs) != len(o.fs) {
		return false
	}
	for i := range s.fs {
		if s.fs[i].key() != o.fs[i].key() {
			return false
		}
	}
	return true
}

func (s FindingSet) String() string {
	strs := make([]string, len(s.fs))
	for i, f := range s.fs {
		strs[i] = f.String()
	}
	return strings.Join(strs, "\n")
}

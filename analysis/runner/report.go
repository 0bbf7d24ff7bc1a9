package runner

import (
	"fmt"
	"io"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/engine"
	"github.com/cs-au-dk/symbex/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	Unit  func(...interface{}) string
	Error func(...interface{}) string
}{
	Unit: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.Bold).SprintFunc())(is...)
	},
	Error: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed).SprintFunc())(is...)
	},
}

// Report gathers the results of a run, indexed by unit ID.
type Report struct {
	Units []*UnitResult
	// Cache aggregates the behavior cache traffic of the run.
	Cache behavior.Stats
}

// Findings lists the findings of all units, ordered by unit.
func (r *Report) Findings() (res []check.Finding) {
	for _, ur := range r.Units {
		res = append(res, ur.Findings.List()...)
	}
	return
}

// Errors lists the units and methods that were not analyzed to completion.
func (r *Report) Errors() (res []*UnitError) {
	for _, ur := range r.Units {
		if ur.Err != nil {
			res = append(res, ur.Err)
		}
		res = append(res, ur.MethodErrors...)
	}
	return
}

// Results lists the method results of all units, ordered by unit.
func (r *Report) Results() (res []*engine.Result) {
	for _, ur := range r.Units {
		res = append(res, ur.Results...)
	}
	return
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Write prints the findings per unit, followed by a summary.
func (r *Report) Write(w io.Writer) error {
	findings := 0
	for _, ur := range r.Units {
		name := ur.Unit.Name
		if name == "" {
			name = fmt.Sprintf("unit %d", int(ur.Unit.ID))
		}

		if ur.Err != nil {
			if _, err := fmt.Fprintf(w, "%s: %s\n", colorize.Unit(name), colorize.Error(ur.Err.Err)); err != nil {
				return err
			}
		}
		if ur.Err != nil && len(ur.Results) == 0 {
			continue
		}

		if _, err := fmt.Fprintf(w, "%s: %s\n", colorize.Unit(name), plural(ur.Findings.Len(), "finding")); err != nil {
			return err
		}
		for _, f := range ur.Findings.List() {
			if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
				return err
			}
		}
		for _, f := range ur.Faults {
			if _, err := fmt.Fprintf(w, "  %s\n", colorize.Error(f)); err != nil {
				return err
			}
		}
		for _, merr := range ur.MethodErrors {
			if _, err := fmt.Fprintf(w, "  %s: %s\n", merr.Method, colorize.Error(merr.Err)); err != nil {
				return err
			}
		}
		findings += ur.Findings.Len()
	}

	_, err := fmt.Fprintf(w, "%s in %s, %s\n",
		plural(findings, "finding"),
		plural(len(r.Units), "unit"),
		plural(len(r.Errors()), "failure"))
	return err
}

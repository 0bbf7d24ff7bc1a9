// Package checks holds the detectors shipped with the engine.
package checks

import (
	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/utils"
)

// Rule identifiers.
const (
	RuleNullDereference = "S2259"
	RuleResourceLeak    = "S2095"
	RuleDoubleOpen      = "S2095-double-open"
	RuleSingleUse       = "S3959"
	RuleDivisionByZero  = "S3518"
)

// Registered lists the detectors enabled by the configuration.
func Registered(config utils.Config) (res []check.Detector) {
	for _, d := range []check.Detector{
		NullDereference{},
		NewResourceLifecycle(config.Resources),
		ResourceLeak{},
		NewSingleUse(config.SingleUse),
		DivisionByZero{},
	} {
		if config.DetectorEnabled(d.Rule()) {
			res = append(res, d)
		}
	}
	return
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// externalName is the name of the external target of a call.
func externalName(i cfg.Call) (string, bool) {
	if t, ok := i.Target.(cfg.External); ok {
		return t.Name, true
	}
	return "", false
}

// receiver is the value a call is invoked on.
func receiver(i cfg.Call) (cfg.Slot, bool) {
	if len(i.Args) == 0 {
		return cfg.NoSlot, false
	}
	return i.Args[0], true
}

// model builds a behavior of an external target from its paths.
func model(name string, paths ...behavior.ExitPath) *behavior.MethodBehavior {
	return (&behavior.MethodBehavior{
		Method:   cfg.MethodID(-1),
		Name:     name,
		Paths:    paths,
		Complete: true,
	}).Normalize()
}

func fresh(n int) []behavior.ResultFact {
	res := make([]behavior.ResultFact, n)
	for i := range res {
		res[i] = behavior.Fresh()
	}
	return res
}

// has is true if v carries c, as seen by ctx.
func has(ctx *check.Context, slot cfg.Slot, c constraint.Constraint) bool {
	return ctx.Is(ctx.ValueOf(slot), c)
}

package main

import (
	"fmt"

	"github.com/cs-au-dk/symbex/analysis/engine"
	"github.com/cs-au-dk/symbex/analysis/runner"
)

func gatherMetrics(report *runner.Report) {
	if !opts.Metrics() || report == nil {
		return
	}

	msg := "================ Results =====================\n\n"

	steps, nodes, pruned := 0, 0, 0
	outcomes := make(map[string]int)
	for _, r := range report.Results() {
		if !r.Metrics.Enabled() {
			continue
		}
		msg += "Function: " + r.Method.Name + "\n"
		msg += "Metrics: " + r.Metrics.String() + "\n"
		if r.Behavior != nil {
			msg += "Exit paths: " + fmt.Sprint(len(r.Behavior.Paths)) + "\n"
		}
		msg += "Function finished\n\n"

		steps += r.Metrics.Steps()
		nodes += r.Metrics.Nodes()
		pruned += r.Metrics.Pruned()
		outcomes[r.Metrics.Outcome]++
	}

	msg += "Steps: " + fmt.Sprint(steps) + "\n"
	msg += "Nodes: " + fmt.Sprint(nodes) + "\n"
	msg += "Pruned: " + fmt.Sprint(pruned) + "\n"
	msg += "Outcomes: {\n"
	for _, outcome := range []engine.Outcome{engine.Complete, engine.BudgetExceeded, engine.Timeout, engine.Cancelled} {
		msg += "  " + outcome.String() + " -- " + fmt.Sprint(outcomes[outcome.String()]) + "\n"
	}
	msg += "}\n"
	msg += "Behavior cache: " + report.Cache.String() + "\n"

	fmt.Println(msg)
}

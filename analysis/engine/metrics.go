package engine

import (
	"fmt"
	"time"
)

// Metrics records statistics of one method exploration. A nil *Metrics
// records nothing, so callers never check whether metrics are enabled.
type Metrics struct {
	steps   int
	nodes   int
	pruned  int
	merges  int
	hits    int
	misses  int
	maxIter int
	timer   time.Time
	time    time.Duration
	Outcome string
}

func (o Options) initMetrics() *Metrics {
	if !o.Metrics {
		return nil
	}
	return &Metrics{}
}

func (m *Metrics) Enabled() bool {
	return m != nil
}

func (m *Metrics) TimerStart() {
	if m == nil {
		return
	}
	m.timer = time.Now()
}

func (m *Metrics) done(steps int, outcome Outcome) {
	if m == nil {
		return
	}
	m.time = time.Since(m.timer)
	m.steps = steps
	m.Outcome = outcome.String()
}

func (m *Metrics) node(iter int) {
	if m == nil {
		return
	}
	m.nodes++
	if iter > m.maxIter {
		m.maxIter = iter
	}
}

func (m *Metrics) prune() {
	if m == nil {
		return
	}
	m.pruned++
}

func (m *Metrics) merge() {
	if m == nil {
		return
	}
	m.merges++
}

func (m *Metrics) cacheHit() {
	if m == nil {
		return
	}
	m.hits++
}

func (m *Metrics) cacheMiss() {
	if m == nil {
		return
	}
	m.misses++
}

func (m *Metrics) Steps() int {
	if m == nil {
		return 0
	}
	return m.steps
}

func (m *Metrics) Nodes() int {
	if m == nil {
		return 0
	}
	return m.nodes
}

func (m *Metrics) Pruned() int {
	if m == nil {
		return 0
	}
	return m.pruned
}

// Performance reports how long the exploration took.
func (m *Metrics) Performance() string {
	if m == nil {
		return "- no metrics gathered -"
	}
	return m.time.String()
}

func (m *Metrics) String() string {
	if m == nil {
		return "- no metrics gathered -"
	}
	return fmt.Sprintf(
		"%s in %s: %d steps, %d nodes, %d pruned, %d merges, %d cache hits, %d misses, max iteration %d",
		m.Outcome, m.time, m.steps, m.nodes, m.pruned, m.merges, m.hits, m.misses, m.maxIter,
	)
}

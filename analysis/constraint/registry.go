package constraint

import (
	"errors"
	"fmt"
	"sort"
)

var ErrDuplicateDomain = errors.New("duplicate constraint domain")

// Registry is the fixed collection of domains known to an engine.
type Registry struct {
	domains []*Domain
	byName  map[string]*Domain
}

// NewRegistry collects the built-in domains and the given ones. A domain
// may be listed several times, but two distinct domains may not share a
// name.
func NewRegistry(domains ...*Domain) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Domain)}
	for _, d := range append(Builtin(), domains...) {
		if prev, found := r.byName[d.name]; found {
			if prev != d {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateDomain, d.name)
			}
			continue
		}
		r.byName[d.name] = d
		r.domains = append(r.domains, d)
	}
	sort.Slice(r.domains, func(i, j int) bool {
		return r.domains[i].name < r.domains[j].name
	})
	return r, nil
}

// Domains lists the registered domains ordered by name.
func (r *Registry) Domains() []*Domain {
	return r.domains
}

func (r *Registry) Lookup(name string) (*Domain, bool) {
	d, ok := r.byName[name]
	return d, ok
}

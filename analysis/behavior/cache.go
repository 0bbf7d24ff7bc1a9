package behavior

import (
	"context"
	"fmt"
	"sync"

	"github.com/cs-au-dk/symbex/analysis/cfg"

	"golang.org/x/sync/singleflight"
)

// Stats counts the cache traffic of one method.
type Stats struct {
	Hits, Misses, Explorations int
}

func (s Stats) String() string {
	return fmt.Sprintf("hits: %d, misses: %d, explorations: %d", s.Hits, s.Misses, s.Explorations)
}

// Cache holds the behaviors computed during one run. It is shared by all
// workers. Entries are never replaced once stored, except that a
// depth-truncated behavior gives way to a deeper exploration.
type Cache struct {
	mu      sync.Mutex
	entries map[cfg.MethodID]*MethodBehavior
	// Depth-truncated behaviors, with the call depth that was left when
	// they were explored.
	partial map[cfg.MethodID]partial
	stats   map[cfg.MethodID]*Stats
	group   singleflight.Group
}

type partial struct {
	b     *MethodBehavior
	depth int
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[cfg.MethodID]*MethodBehavior),
		partial: make(map[cfg.MethodID]partial),
		stats:   make(map[cfg.MethodID]*Stats),
	}
}

func (c *Cache) stat(m cfg.MethodID) *Stats {
	s, ok := c.stats[m]
	if !ok {
		s = &Stats{}
		c.stats[m] = s
	}
	return s
}

func (c *Cache) lookup(m cfg.MethodID, depth int) (*MethodBehavior, bool) {
	if b, ok := c.entries[m]; ok {
		return b, true
	}
	if p, ok := c.partial[m]; ok && p.depth >= depth {
		return p.b, true
	}
	return nil, false
}

// Lookup returns the cached behavior of m that serves a call with depth
// call levels left, without counting a hit.
func (c *Cache) Lookup(m cfg.MethodID, depth int) (*MethodBehavior, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(m, depth)
}

// Store records the behavior of a method explored with depth call levels
// left, unless a behavior serving that depth is already stored. A full
// exploration always displaces a truncated one. It returns the behavior now
// in the cache.
func (c *Cache) Store(b *MethodBehavior, depth int) *MethodBehavior {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.entries[b.Method]; ok {
		return prev
	}
	if !b.Truncated {
		c.entries[b.Method] = b
		delete(c.partial, b.Method)
		return b
	}
	if p, ok := c.partial[b.Method]; ok && p.depth >= depth {
		return p.b
	}
	c.partial[b.Method] = partial{b, depth}
	return b
}

// Resolve returns the behavior of m for a call with depth call levels left,
// calling explore on a miss. Concurrent misses on the same method and depth
// share one exploration. Explorations that fail, such as cancelled ones,
// are not stored, and neither are those explore asks not to keep.
func (c *Cache) Resolve(
	ctx context.Context,
	m cfg.MethodID,
	depth int,
	explore func(context.Context) (b *MethodBehavior, keep bool, err error),
) (*MethodBehavior, error) {
	c.mu.Lock()
	if b, ok := c.lookup(m, depth); ok {
		c.stat(m).Hits++
		c.mu.Unlock()
		return b, nil
	}
	c.stat(m).Misses++
	c.mu.Unlock()

	key := fmt.Sprintf("%d@%d", int(m), depth)
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		if b, ok := c.Lookup(m, depth); ok {
			return b, nil
		}

		c.mu.Lock()
		c.stat(m).Explorations++
		c.mu.Unlock()

		b, keep, err := explore(ctx)
		if err != nil {
			return nil, err
		}
		if !keep {
			return b, nil
		}
		return c.Store(b, depth), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*MethodBehavior), nil
}

// Stats returns the statistics of a method.
func (c *Cache) Stats(m cfg.MethodID) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stats[m]; ok {
		return *s
	}
	return Stats{}
}

// Totals sums the statistics of all methods.
func (c *Cache) Totals() (res Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.stats {
		res.Hits += s.Hits
		res.Misses += s.Misses
		res.Explorations += s.Explorations
	}
	return
}

// Len is the number of stored behaviors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries) + len(c.partial)
}

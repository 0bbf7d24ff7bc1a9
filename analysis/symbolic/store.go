package symbolic

import (
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/defs"
)

// Store hands out values for one method exploration. It is confined to the
// goroutine running that exploration. There is no deletion.
type Store struct {
	next int
}

func NewStore() *Store {
	return &Store{}
}

// NewValue returns an identity not returned before by this store.
func (s *Store) NewValue() Value {
	s.next++
	return Value{kind: Fresh, id: s.next}
}

// ValueOf returns the canonical value of a literal. Equal literals yield the
// same value. Unknown literals are never equal to anything, so each
// yields a fresh value.
func (s *Store) ValueOf(c cfg.Constant) Value {
	if _, ok := c.(cfg.UnknownConst); ok || c == nil {
		return s.NewValue()
	}
	return Value{kind: Const, c: c}
}

// Param is the value of the i-th parameter on method entry.
func (s *Store) Param(i int) Value {
	return Value{kind: Param, id: i}
}

// At is the value created by the instruction at point. Instructions
// producing several values distinguish them by ordinal.
func (s *Store) At(point defs.ProgramPoint, ordinal int) Value {
	return Value{kind: Site, id: ordinal, point: point}
}

// Join is the value a slot takes when states disagreeing on it are merged
// at point. The identity only depends on the point and the slot, so merging
// the same pair twice, in either order, yields the same value.
func (s *Store) Join(point defs.ProgramPoint, slot cfg.Slot) Value {
	return Value{kind: Joined, id: int(slot), point: point}
}

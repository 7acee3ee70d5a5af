package objstore

import (
	"maps"
	"slices"
)

// Stage holds pending additions and removals that have not been committed.
type Stage struct {
	additions map[string]string
	removals  map[string]struct{}
}

// NewStage returns an empty stage.
func NewStage() *Stage {
	return &Stage{
		additions: make(map[string]string),
		removals:  make(map[string]struct{}),
	}
}

// Add stages value under name, replacing any pending change for that name.
func (s *Stage) Add(name, value string) {
	delete(s.removals, name)
	s.additions[name] = value
}

// Remove marks name for removal. Whether the name is committed is checked by the caller.
func (s *Stage) Remove(name string) {
	delete(s.additions, name)
	s.removals[name] = struct{}{}
}

func (s *Stage) IsEmpty() bool {
	return s.Size() == 0
}

// Size is the number of staged additions plus removals.
func (s *Stage) Size() int {
	return len(s.additions) + len(s.removals)
}

// Additions returns a copy of the staged additions.
func (s *Stage) Additions() map[string]string {
	return maps.Clone(s.additions)
}

// Removals returns the names staged for removal, sorted.
func (s *Stage) Removals() []string {
	return slices.Sorted(maps.Keys(s.removals))
}

// Names returns every name with a pending change, sorted.
func (s *Stage) Names() []string {
	names := make([]string, 0, s.Size())
	for name := range s.additions {
		names = append(names, name)
	}
	for name := range s.removals {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Stage) clone() *Stage {
	c := NewStage()
	maps.Copy(c.additions, s.additions)
	maps.Copy(c.removals, s.removals)
	return c
}

func (s *Stage) apply(objects map[string]string) {
	maps.Copy(objects, s.additions)
	for name := range s.removals {
		delete(objects, name)
	}
}

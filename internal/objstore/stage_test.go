package objstore

import (
	"slices"
	"testing"
)

func TestStageLastCallWins(t *testing.T) {
	s := NewStage()
	if !s.IsEmpty() {
		t.Fatal("new stage is not empty")
	}

	s.Add("a", "1")
	s.Remove("a")
	if got := s.Additions(); len(got) != 0 {
		t.Fatalf("additions = %v, want none", got)
	}
	if got := s.Removals(); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("removals = %v", got)
	}

	s.Add("a", "2")
	s.Add("b", "3")
	if got := s.Removals(); len(got) != 0 {
		t.Fatalf("removals = %v, want none", got)
	}
	if s.Size() != 2 {
		t.Fatalf("Size = %d, want 2", s.Size())
	}
	if got := s.Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("Names = %v", got)
	}
}

func TestStageApply(t *testing.T) {
	s := NewStage()
	s.Add("new", "n")
	s.Add("kept", "k2")
	s.Remove("gone")

	objects := map[string]string{"kept": "k1", "gone": "g"}
	s.apply(objects)

	want := map[string]string{"new": "n", "kept": "k2"}
	if len(objects) != len(want) {
		t.Fatalf("objects = %v, want %v", objects, want)
	}
	for k, v := range want {
		if objects[k] != v {
			t.Fatalf("objects[%q] = %q, want %q", k, objects[k], v)
		}
	}

	c := s.clone()
	c.Add("other", "o")
	if s.Size() != 3 {
		t.Fatalf("clone shares state with original")
	}
}

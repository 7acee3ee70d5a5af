package objstore

import (
	"slices"
	"testing"
)

func TestBranchCreate(t *testing.T) {
	s := newTestStore(t, nil)
	branches := s.Branch()

	r := branches.Create("dev")
	mustOK(t, r)
	if r.Message() != "Created branch dev." {
		t.Fatalf("message = %q", r.Message())
	}
	if branches.Current().Name() != "master" {
		t.Fatalf("create switched branches")
	}

	r = branches.Create("dev")
	mustFail(t, r, ErrAlreadyExists)
	if r.Message() != "Branch dev already exists." {
		t.Fatalf("message = %q", r.Message())
	}
}

func TestBranchForkIndependence(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("a", "1")
	a := mustOK(t, s.Commit("A"))
	s.Add("b", "1")
	b := mustOK(t, s.Commit("B"))

	mustOK(t, s.Branch().Create("b"))

	s.Add("m", "master only")
	m := mustOK(t, s.Commit("M"))

	mustOK(t, s.Branch().Checkout("b"))
	if got := s.Branch().Current().Commits(); !slices.Equal(got, []*Commit{a, b}) {
		t.Fatalf("b history = %v", got)
	}
	mustFail(t, s.Get("m"), ErrNotCommitted)

	s.Add("x", "branch only")
	x := mustOK(t, s.Commit("X"))
	if x.Parent() != b {
		t.Fatalf("fork commit parent is not B")
	}

	master, _ := s.Branch().Get("master")
	if got := master.Commits(); !slices.Equal(got, []*Commit{a, b, m}) {
		t.Fatalf("master history = %v", got)
	}
	if got := s.Branch().Current().Commits(); !slices.Equal(got, []*Commit{a, b, x}) {
		t.Fatalf("b history = %v", got)
	}
}

func TestBranchCheckoutDiscardsStage(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("a", "1")
	mustOK(t, s.Commit("A"))
	mustOK(t, s.Branch().Create("other"))

	s.Add("pending", "1")
	r := s.Branch().Checkout("other")
	mustOK(t, r)
	if r.Message() != "Switched to branch other." {
		t.Fatalf("message = %q", r.Message())
	}
	mustFail(t, s.Commit("nothing staged"), ErrNothingToCommit)
	if v := mustOK(t, s.Get("a")); v != "1" {
		t.Fatalf("a = %q", v)
	}

	r = s.Branch().Checkout("missing")
	mustFail(t, r, ErrNotFound)
	if r.Message() != "Branch missing does not exist." {
		t.Fatalf("message = %q", r.Message())
	}
}

func TestBranchRemove(t *testing.T) {
	s := newTestStore(t, nil)
	branches := s.Branch()

	r := branches.Remove("master")
	mustFail(t, r, ErrCannotRemoveCurrent)
	if r.Message() != "Cannot remove current branch." {
		t.Fatalf("message = %q", r.Message())
	}

	s.Add("a", "1")
	mustOK(t, s.Commit("A"))
	mustFail(t, branches.Remove("master"), ErrCannotRemoveCurrent)

	mustFail(t, branches.Remove("nope"), ErrNotFound)

	mustOK(t, branches.Create("tmp"))
	r = branches.Remove("tmp")
	mustOK(t, r)
	if r.Message() != "Removed branch tmp." {
		t.Fatalf("message = %q", r.Message())
	}
	if _, ok := branches.Get("tmp"); ok {
		t.Fatalf("tmp still present")
	}
}

func TestBranchListOrder(t *testing.T) {
	s := newTestStore(t, func(s *Store) {
		s.Branch().Create("zeta")
		s.Branch().Create("alpha")
		s.Branch().Checkout("alpha")
	})

	r := s.Branch().List()
	names := mustOK(t, r)
	if r.Message() != "* alpha\n  master\n  zeta" {
		t.Fatalf("list = %q", r.Message())
	}
	if !slices.Equal(names, []string{"alpha", "master", "zeta"}) {
		t.Fatalf("names = %v", names)
	}
}

func TestCheckoutOnForkLeavesOtherBranch(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("a", "1")
	a := mustOK(t, s.Commit("A"))
	s.Add("b", "1")
	b := mustOK(t, s.Commit("B"))
	mustOK(t, s.Branch().Create("keep"))

	mustOK(t, s.Checkout(a.Hash()))
	s.Add("c", "1")
	c := mustOK(t, s.Commit("C"))

	keep, _ := s.Branch().Get("keep")
	if got := keep.Commits(); !slices.Equal(got, []*Commit{a, b}) {
		t.Fatalf("keep history = %v", got)
	}
	if got := s.Branch().Current().Commits(); !slices.Equal(got, []*Commit{a, c}) {
		t.Fatalf("master history = %v", got)
	}
}

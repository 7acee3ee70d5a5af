// Package objstore implements an in-memory version-control engine: a staging
// area, per-branch commit histories and object lookup through commit ancestry.
//
// A Store is not safe for concurrent use. Callers sharing one across
// goroutines must guard its whole surface with a single lock.
package objstore

import (
	"slices"
	"strings"
	"time"
)

// DefaultBranch is the branch every store starts with.
const DefaultBranch = "master"

// Store orchestrates the stage and the branches.
type Store struct {
	clock    func() time.Time
	stage    *Stage
	branches *BranchManager
}

// Option configures a Store.
type Option func(*options)

type options struct {
	clock         func() time.Time
	defaultBranch string
}

// WithClock overrides the time source used to stamp commits.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithDefaultBranch names the initial branch.
func WithDefaultBranch(name string) Option {
	return func(o *options) {
		if name != "" {
			o.defaultBranch = name
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now, defaultBranch: DefaultBranch}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns an empty store with a single branch and no commits.
func New(opts ...Option) *Store {
	o := buildOptions(opts)
	s := &Store{clock: o.clock, stage: NewStage()}
	s.branches = newBranchManager(o.defaultBranch, s.resetStage)
	return s
}

// Build returns a new store after running setup against it.
func Build(setup func(*Store), opts ...Option) *Store {
	s := New(opts...)
	if setup != nil {
		setup(s)
	}
	return s
}

func (s *Store) resetStage(*Branch) {
	s.stage = NewStage()
}

// Branch exposes branch management.
func (s *Store) Branch() *BranchManager { return s.branches }

func (s *Store) latest() *Commit {
	return s.branches.current.Latest()
}

// Add stages value under name.
func (s *Store) Add(name, value string) Result[string] {
	s.stage.Add(name, value)
	return success(value, "Added %s to stage.", name)
}

// Remove stages the removal of a committed object.
func (s *Store) Remove(name string) Result[string] {
	head := s.latest()
	if head == nil {
		return failure[string](ErrNotCommitted, "Object %s is not committed.", name)
	}
	value, ok := head.Object(name)
	if !ok {
		return failure[string](ErrNotCommitted, "Object %s is not committed.", name)
	}
	s.stage.Remove(name)
	return success(value, "Added %s for removal.", name)
}

// Commit folds the stage into a new commit on the current branch.
func (s *Store) Commit(message string) Result[*Commit] {
	if s.stage.IsEmpty() {
		return failure[*Commit](ErrNothingToCommit, "Nothing to commit, working directory clean.")
	}
	changed := s.stage.Size()
	c := NewCommit(message, s.latest(), s.stage, s.clock())
	s.branches.current.append(c)
	s.stage = NewStage()
	return success(c, "%s\n\t%d objects changed", message, changed)
}

// Head returns the latest commit of the current branch.
func (s *Store) Head() Result[*Commit] {
	head := s.latest()
	if head == nil {
		return s.noCommits()
	}
	return success(head, "%s", head.message)
}

// Log renders the current branch history, newest first.
func (s *Store) Log() Result[[]*Commit] {
	if s.latest() == nil {
		return failure[[]*Commit](ErrNoCommitsYet, "Branch %s does not have any commits yet.", s.branches.current.name)
	}
	commits := s.branches.current.Commits()
	slices.Reverse(commits)
	entries := make([]string, 0, len(commits))
	for _, c := range commits {
		entries = append(entries, c.String())
	}
	return success(commits, "%s", strings.Join(entries, "\n\n"))
}

// Checkout rewinds the current branch to the commit with hash, discarding
// every later commit, and clears the stage.
func (s *Store) Checkout(hash string) Result[*Commit] {
	branch := s.branches.current
	i := branch.Find(hash)
	if i < 0 {
		return failure[*Commit](ErrCommitNotFound, "Commit %s does not exist.", hash)
	}
	branch.truncate(i)
	s.stage = NewStage()
	return success(branch.Latest(), "HEAD is now at %s.", hash)
}

// Get looks up a committed object on the current branch.
func (s *Store) Get(name string) Result[string] {
	head := s.latest()
	if head == nil {
		return failure[string](ErrNotCommitted, "Object %s is not committed.", name)
	}
	value, ok := head.Object(name)
	if !ok {
		return failure[string](ErrNotCommitted, "Object %s is not committed.", name)
	}
	return success(value, "Found object %s.", name)
}

// Status describes the working state of a store.
type Status struct {
	Branch    string
	Head      string
	Additions map[string]string
	Removals  []string
}

// Status reports the current branch and the pending changes.
func (s *Store) Status() Result[Status] {
	st := Status{
		Branch:    s.branches.current.name,
		Additions: s.stage.Additions(),
		Removals:  s.stage.Removals(),
	}
	if head := s.latest(); head != nil {
		st.Head = head.hash
	}
	if s.stage.IsEmpty() {
		return success(st, "On branch %s\nnothing to commit", st.Branch)
	}
	return success(st, "On branch %s\n%d changes staged", st.Branch, s.stage.Size())
}

func (s *Store) noCommits() Result[*Commit] {
	return failure[*Commit](ErrNoCommitsYet, "Branch %s does not have any commits yet.", s.branches.current.name)
}

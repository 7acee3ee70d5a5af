package objstore

import (
	"slices"
	"strings"
)

// Branch is a named history of commits, oldest first.
type Branch struct {
	name    string
	commits []*Commit
}

func newBranch(name string, commits []*Commit) *Branch {
	return &Branch{name: name, commits: slices.Clone(commits)}
}

func (b *Branch) Name() string { return b.name }

// Commits returns a copy of the history, oldest first.
func (b *Branch) Commits() []*Commit { return slices.Clone(b.commits) }

func (b *Branch) Len() int { return len(b.commits) }

// Latest returns the newest commit or nil for an empty branch.
func (b *Branch) Latest() *Commit {
	if len(b.commits) == 0 {
		return nil
	}
	return b.commits[len(b.commits)-1]
}

// Find returns the position of the commit with hash, or -1.
func (b *Branch) Find(hash string) int {
	return slices.IndexFunc(b.commits, func(c *Commit) bool { return c.hash == hash })
}

func (b *Branch) append(c *Commit) {
	b.commits = append(b.commits, c)
}

// truncate keeps commits[0..i] inclusive. The slice is reallocated so that
// other branches sharing the backing array are unaffected by later appends.
func (b *Branch) truncate(i int) {
	b.commits = slices.Clone(b.commits[:i+1])
}

// BranchManager owns the branches of a store and the current branch pointer.
type BranchManager struct {
	branches map[string]*Branch
	current  *Branch
	onSwitch func(*Branch)
}

func newBranchManager(initial string, onSwitch func(*Branch)) *BranchManager {
	b := newBranch(initial, nil)
	return &BranchManager{
		branches: map[string]*Branch{initial: b},
		current:  b,
		onSwitch: onSwitch,
	}
}

// Current returns the checked-out branch. It is never nil.
func (m *BranchManager) Current() *Branch { return m.current }

// Get looks up a branch by name.
func (m *BranchManager) Get(name string) (*Branch, bool) {
	b, ok := m.branches[name]
	return b, ok
}

// Names returns all branch names, sorted.
func (m *BranchManager) Names() []string {
	names := make([]string, 0, len(m.branches))
	for name := range m.branches {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Create forks a new branch from the current branch's history without switching to it.
func (m *BranchManager) Create(name string) Result[*Branch] {
	if _, exists := m.branches[name]; exists {
		return failure[*Branch](ErrAlreadyExists, "Branch %s already exists.", name)
	}
	b := newBranch(name, m.current.commits)
	m.branches[name] = b
	return success(b, "Created branch %s.", name)
}

// Checkout makes name the current branch and discards the pending stage.
func (m *BranchManager) Checkout(name string) Result[*Branch] {
	b, ok := m.branches[name]
	if !ok {
		return failure[*Branch](ErrNotFound, "Branch %s does not exist.", name)
	}
	m.current = b
	if m.onSwitch != nil {
		m.onSwitch(b)
	}
	return success(b, "Switched to branch %s.", name)
}

// Remove deletes a branch other than the current one.
func (m *BranchManager) Remove(name string) Result[*Branch] {
	b, ok := m.branches[name]
	if !ok {
		return failure[*Branch](ErrNotFound, "Branch %s does not exist.", name)
	}
	if b == m.current {
		return failure[*Branch](ErrCannotRemoveCurrent, "Cannot remove current branch.")
	}
	delete(m.branches, name)
	return success(b, "Removed branch %s.", name)
}

// List renders the sorted branch names, marking the current one with "* ".
func (m *BranchManager) List() Result[[]string] {
	names := m.Names()
	lines := make([]string, 0, len(names))
	for _, name := range names {
		prefix := "  "
		if name == m.current.name {
			prefix = "* "
		}
		lines = append(lines, prefix+name)
	}
	return success(names, "%s", strings.Join(lines, "\n"))
}

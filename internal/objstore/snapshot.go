package objstore

import (
	"errors"
	"fmt"

	"github.com/onexay/objstore/internal/types"
)

// ErrInvalidSnapshot reports a snapshot that cannot be restored.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot exports the complete state of the store. Commits shared between
// branches are written once.
func (s *Store) Snapshot() (types.Snapshot, error) {
	snap := types.Snapshot{
		Version: types.SnapshotVersion,
		Current: s.branches.current.name,
		Stage: types.Stage{
			Additions: encodeValues(s.stage.additions),
			Removals:  s.stage.Removals(),
		},
		SavedAt: s.clock().UTC(),
	}

	seen := make(map[string]*Commit)
	for _, name := range s.branches.Names() {
		branch := s.branches.branches[name]
		hashes := make([]string, 0, len(branch.commits))
		for _, c := range branch.commits {
			hashes = append(hashes, c.hash)
			if prev, ok := seen[c.hash]; ok {
				if prev != c {
					return types.Snapshot{}, fmt.Errorf("commit hash %s is shared by distinct commits", c.hash)
				}
				continue
			}
			seen[c.hash] = c
			snap.Commits = append(snap.Commits, exportCommit(c))
		}
		snap.Branches = append(snap.Branches, types.Branch{Name: name, Commits: hashes})
	}
	return snap, nil
}

func exportCommit(c *Commit) types.Commit {
	rec := types.Commit{
		Hash:      c.hash,
		Message:   c.message,
		Timestamp: c.timestamp,
		Additions: encodeValues(c.stage.additions),
		Removals:  c.stage.Removals(),
	}
	if c.parent != nil {
		rec.Parent = c.parent.hash
	}
	if id, err := c.ContentID(); err == nil {
		rec.ContentID = id
	}
	return rec
}

// Restore rebuilds a store from a snapshot, keeping hashes and timestamps.
func Restore(snap types.Snapshot, opts ...Option) (*Store, error) {
	if snap.Version != types.SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, snap.Version)
	}
	if len(snap.Branches) == 0 {
		return nil, fmt.Errorf("%w: no branches", ErrInvalidSnapshot)
	}

	records := make(map[string]types.Commit, len(snap.Commits))
	for _, rec := range snap.Commits {
		records[rec.Hash] = rec
	}

	o := buildOptions(opts)
	s := &Store{clock: o.clock, stage: NewStage()}
	m := &BranchManager{branches: make(map[string]*Branch, len(snap.Branches)), onSwitch: s.resetStage}
	s.branches = m

	built := make(map[string]*Commit, len(snap.Commits))
	for _, rb := range snap.Branches {
		if _, dup := m.branches[rb.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate branch %s", ErrInvalidSnapshot, rb.Name)
		}
		branch := &Branch{name: rb.Name, commits: make([]*Commit, 0, len(rb.Commits))}
		var prev *Commit
		for _, hash := range rb.Commits {
			c, err := restoreCommit(hash, prev, records, built)
			if err != nil {
				return nil, err
			}
			branch.commits = append(branch.commits, c)
			prev = c
		}
		m.branches[rb.Name] = branch
	}

	current, ok := m.branches[snap.Current]
	if !ok {
		return nil, fmt.Errorf("%w: current branch %q missing", ErrInvalidSnapshot, snap.Current)
	}
	m.current = current

	for name, value := range snap.Stage.Additions {
		s.stage.Add(name, string(value))
	}
	for _, name := range snap.Stage.Removals {
		s.stage.Remove(name)
	}
	return s, nil
}

func restoreCommit(hash string, parent *Commit, records map[string]types.Commit, built map[string]*Commit) (*Commit, error) {
	parentHash := ""
	if parent != nil {
		parentHash = parent.hash
	}

	if c, ok := built[hash]; ok {
		if c.parent != parent {
			return nil, fmt.Errorf("%w: commit %s has conflicting parents", ErrInvalidSnapshot, hash)
		}
		return c, nil
	}

	rec, ok := records[hash]
	if !ok {
		return nil, fmt.Errorf("%w: commit %s missing", ErrInvalidSnapshot, hash)
	}
	if rec.Parent != parentHash {
		return nil, fmt.Errorf("%w: commit %s expects parent %q, found %q", ErrInvalidSnapshot, hash, rec.Parent, parentHash)
	}

	stage := NewStage()
	for name, value := range rec.Additions {
		stage.Add(name, string(value))
	}
	for _, name := range rec.Removals {
		stage.Remove(name)
	}
	c := &Commit{
		message:   rec.Message,
		parent:    parent,
		stage:     stage,
		timestamp: rec.Timestamp,
		hash:      rec.Hash,
	}
	built[hash] = c
	return c, nil
}

func encodeValues(values map[string]string) map[string][]byte {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(values))
	for name, value := range values {
		out[name] = []byte(value)
	}
	return out
}

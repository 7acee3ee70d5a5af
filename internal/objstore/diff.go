package objstore

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ChangeKind classifies a single staged change relative to the parent commit.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change describes how one object differs between a commit and its parent.
type Change struct {
	Name   string
	Kind   ChangeKind
	Before string
	After  string
}

// Changes lists the effect of this commit's stage, sorted by name. Re-adding
// an unchanged value and removing an already absent name are still reported.
func (c *Commit) Changes() []Change {
	var before map[string]string
	if c.parent != nil {
		before = c.parent.resolve()
	}

	changes := make([]Change, 0, c.stage.Size())
	for _, name := range c.stage.Names() {
		prev, existed := before[name]
		if value, ok := c.stage.additions[name]; ok {
			kind := ChangeAdded
			if existed {
				kind = ChangeModified
			}
			changes = append(changes, Change{Name: name, Kind: kind, Before: prev, After: value})
			continue
		}
		changes = append(changes, Change{Name: name, Kind: ChangeRemoved, Before: prev})
	}
	return changes
}

// Diff renders Changes as concatenated unified diffs.
func (c *Commit) Diff() string {
	var parts []string
	for _, change := range c.Changes() {
		if d := computeDiff(change.Name, change.Before, change.After); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, "\n")
}

func computeDiff(name, previous, current string) string {
	if previous == current {
		return ""
	}

	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}

	res, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return strings.TrimSpace(current)
	}

	return strings.TrimSpace(res)
}

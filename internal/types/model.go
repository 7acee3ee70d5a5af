package types

import "time"

// SnapshotVersion is the current snapshot encoding version.
const SnapshotVersion = 1

// Commit is the serialized form of a commit and the stage it applied.
// Object values are opaque bytes and encode as base64.
type Commit struct {
	Hash      string            `json:"hash"`
	Parent    string            `json:"parent,omitempty"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	ContentID string            `json:"contentId,omitempty"`
	Additions map[string][]byte `json:"additions,omitempty"`
	Removals  []string          `json:"removals,omitempty"`
}

// Branch lists a branch's commit hashes, oldest first.
type Branch struct {
	Name    string   `json:"name"`
	Commits []string `json:"commits"`
}

// Stage is the serialized form of pending changes.
type Stage struct {
	Additions map[string][]byte `json:"additions,omitempty"`
	Removals  []string          `json:"removals,omitempty"`
}

// Snapshot captures the full state of an object store.
type Snapshot struct {
	Version  int       `json:"version"`
	Current  string    `json:"current"`
	Branches []Branch  `json:"branches"`
	Commits  []Commit  `json:"commits"`
	Stage    Stage     `json:"stage"`
	SavedAt  time.Time `json:"savedAt"`
}

// CommitView is how the API presents a commit.
type CommitView struct {
	Hash      string    `json:"hash"`
	Parent    string    `json:"parent,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ContentID string    `json:"contentId,omitempty"`
}

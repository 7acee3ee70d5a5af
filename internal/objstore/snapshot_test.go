package objstore

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onexay/objstore/internal/types"
)

func TestSnapshotRestore(t *testing.T) {
	s := newTestStore(t, func(s *Store) {
		s.Add("a", "1")
		s.Commit("A")
		s.Branch().Create("feature")
		s.Add("b", "2")
		s.Commit("B")
		s.Branch().Checkout("feature")
		s.Add("c", "3")
		s.Commit("C")
		s.Add("pending", "p")
	})

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Commits) != 3 {
		t.Fatalf("commits = %d, want 3 (shared root written once)", len(snap.Commits))
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded types.Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored, err := Restore(decoded, WithClock(testClock()))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if restored.Branch().Current().Name() != "feature" {
		t.Fatalf("current = %q", restored.Branch().Current().Name())
	}
	if restored.Log().Message() != s.Log().Message() {
		t.Fatalf("log differs:\n%s\n---\n%s", restored.Log().Message(), s.Log().Message())
	}
	if v := mustOK(t, restored.Get("c")); v != "3" {
		t.Fatalf("c = %q", v)
	}
	mustFail(t, restored.Get("b"), ErrNotCommitted)

	st := mustOK(t, restored.Status())
	if st.Additions["pending"] != "p" {
		t.Fatalf("stage not restored: %+v", st)
	}

	master, _ := restored.Branch().Get("master")
	feature := restored.Branch().Current()
	if master.Commits()[0] != feature.Commits()[0] {
		t.Fatalf("shared root commit was duplicated")
	}
	if v, _ := master.Latest().Object("b"); v != "2" {
		t.Fatalf("master b = %q", v)
	}
}

func TestRestoreRejectsBrokenSnapshots(t *testing.T) {
	cases := map[string]types.Snapshot{
		"version":  {Version: 99},
		"branches": {Version: types.SnapshotVersion},
		"current": {
			Version:  types.SnapshotVersion,
			Current:  "gone",
			Branches: []types.Branch{{Name: "master"}},
		},
		"missing commit": {
			Version:  types.SnapshotVersion,
			Current:  "master",
			Branches: []types.Branch{{Name: "master", Commits: []string{"abc"}}},
		},
		"parent mismatch": {
			Version:  types.SnapshotVersion,
			Current:  "master",
			Branches: []types.Branch{{Name: "master", Commits: []string{"abc"}}},
			Commits:  []types.Commit{{Hash: "abc", Parent: "zzz"}},
		},
	}

	for name, snap := range cases {
		if _, err := Restore(snap); !errors.Is(err, ErrInvalidSnapshot) {
			t.Errorf("%s: err = %v, want ErrInvalidSnapshot", name, err)
		}
	}
}

func TestCommitDiffAndContentID(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("doc", "line one\nline two\n")
	s.Add("gone", "x")
	first := mustOK(t, s.Commit("first"))

	s.Add("doc", "line one\nline 2\n")
	s.Remove("gone")
	s.Add("new", "n")
	second := mustOK(t, s.Commit("second"))

	changes := second.Changes()
	if len(changes) != 3 {
		t.Fatalf("changes = %+v", changes)
	}
	kinds := map[string]ChangeKind{}
	for _, c := range changes {
		kinds[c.Name] = c.Kind
	}
	if kinds["doc"] != ChangeModified || kinds["gone"] != ChangeRemoved || kinds["new"] != ChangeAdded {
		t.Fatalf("kinds = %v", kinds)
	}

	diff := second.Diff()
	for _, want := range []string{"--- a/doc", "+++ b/doc", "-line two", "+line 2", "--- a/gone"} {
		if !strings.Contains(diff, want) {
			t.Fatalf("diff missing %q:\n%s", want, diff)
		}
	}

	id1, err := first.ContentID()
	if err != nil {
		t.Fatalf("ContentID: %v", err)
	}
	id2, _ := second.ContentID()
	if id1 == id2 || !strings.HasPrefix(id1, "b") {
		t.Fatalf("content ids = %q, %q", id1, id2)
	}

	// Same objects committed elsewhere share a content id but not a hash.
	other := newTestStore(t, nil)
	other.Add("gone", "x")
	other.Add("doc", "line one\nline two\n")
	again := mustOK(t, other.Commit("different message"))
	id3, _ := again.ContentID()
	if id3 != id1 {
		t.Fatalf("content id depends on more than objects: %q vs %q", id3, id1)
	}
	if again.Hash() == first.Hash() {
		t.Fatalf("hashes collided")
	}
}

func TestCommitHashDependsOnTimeAndMessage(t *testing.T) {
	clock := testClock()
	ts := clock()
	a := NewCommit("msg", nil, nil, ts)
	b := NewCommit("msg", nil, nil, ts)
	c := NewCommit("other", nil, nil, ts)
	if a.Hash() != b.Hash() {
		t.Fatalf("same inputs produced different hashes")
	}
	if a.Hash() == c.Hash() {
		t.Fatalf("different messages produced the same hash")
	}
	if len(a.Hash()) != 64 {
		t.Fatalf("hash length = %d", len(a.Hash()))
	}
}

func TestSnapshotKeepsBinaryValues(t *testing.T) {
	const blob = "\xff\xfe\x00\x01"
	s := newTestStore(t, func(s *Store) {
		s.Add("blob", blob)
		s.Commit("binary")
		s.Add("pending", "\xfe")
	})

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded types.Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	restored, err := Restore(decoded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if v := mustOK(t, restored.Get("blob")); v != blob {
		t.Fatalf("blob = %q, want %q", v, blob)
	}
	if st := mustOK(t, restored.Status()); st.Additions["pending"] != "\xfe" {
		t.Fatalf("pending = %q", st.Additions["pending"])
	}

	before, _ := mustOK(t, s.Head()).ContentID()
	after, _ := mustOK(t, restored.Head()).ContentID()
	if before != after {
		t.Fatalf("content id changed across restore: %q vs %q", before, after)
	}
}

func TestContentIDDistinguishesBytes(t *testing.T) {
	ids := make(map[string]string)
	for label, objects := range map[string]map[string]string{
		"ff":    {"x": "\xff"},
		"fe":    {"x": "\xfe"},
		"ab|c":  {"ab": "c"},
		"a|bc":  {"a": "bc"},
		"empty": {},
	} {
		id, err := computeContentID(objects)
		if err != nil {
			t.Fatalf("computeContentID(%s): %v", label, err)
		}
		if other, dup := ids[id]; dup {
			t.Fatalf("%s and %s share content id %s", label, other, id)
		}
		ids[id] = label
	}
}

func TestSnapshotRejectsSharedHash(t *testing.T) {
	fixed := time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)
	s := Build(func(s *Store) {
		s.Add("a", "1")
		s.Commit("same")
		s.Add("b", "2")
		s.Commit("same")
	}, WithClock(func() time.Time { return fixed }))

	commits := s.Branch().Current().Commits()
	if len(commits) != 2 || commits[0].Hash() != commits[1].Hash() {
		t.Fatalf("expected two commits sharing a hash, got %d", len(commits))
	}
	if _, err := s.Snapshot(); err == nil {
		t.Fatal("Snapshot succeeded with distinct commits sharing a hash")
	}
}

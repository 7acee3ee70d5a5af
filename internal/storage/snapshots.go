package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/onexay/objstore/internal/types"
)

const (
	// LatestRef names the pointer to the most recently saved snapshot.
	LatestRef = "latest"
	// AutosaveRef names the pointer to the snapshot written by the last
	// autosave. Only that snapshot is replaced by the next autosave.
	AutosaveRef = "autosave"
)

// Snapshots saves store snapshots into an Archive. Each snapshot is written
// under the hex SHA-256 of its encoding; LatestRef holds the newest digest.
type Snapshots struct {
	archive Archive
}

// NewSnapshots wraps archive.
func NewSnapshots(archive Archive) *Snapshots {
	return &Snapshots{archive: archive}
}

// Save writes snap for repo and returns its digest. Saved snapshots are kept
// until removed explicitly.
func (s *Snapshots) Save(ctx context.Context, repo string, snap types.Snapshot) (string, error) {
	prev, err := s.pointer(ctx, repo, AutosaveRef)
	if err != nil {
		return "", err
	}
	digest, err := s.put(ctx, repo, snap)
	if err != nil {
		return "", err
	}
	if prev == digest {
		if err := s.archive.Remove(ctx, repo, AutosaveRef); err != nil {
			return "", fmt.Errorf("release %s: %w", AutosaveRef, err)
		}
	}
	return digest, nil
}

// Autosave writes snap like Save but replaces the previous autosaved
// snapshot instead of accumulating one per call.
func (s *Snapshots) Autosave(ctx context.Context, repo string, snap types.Snapshot) (string, error) {
	prev, err := s.pointer(ctx, repo, AutosaveRef)
	if err != nil {
		return "", err
	}
	digest, err := s.put(ctx, repo, snap)
	if err != nil {
		return "", err
	}
	if err := s.archive.Store(ctx, repo, AutosaveRef, []byte(digest)); err != nil {
		return "", fmt.Errorf("update %s: %w", AutosaveRef, err)
	}
	if prev != "" && prev != digest {
		if err := s.archive.Remove(ctx, repo, prev); err != nil {
			return digest, fmt.Errorf("remove superseded snapshot %s: %w", prev, err)
		}
	}
	return digest, nil
}

// Remove deletes the snapshot stored under digest. The snapshot LatestRef
// points to cannot be removed.
func (s *Snapshots) Remove(ctx context.Context, repo, digest string) error {
	if repo == "" || digest == "" {
		return &ValidationError{Message: "repository and digest are required"}
	}
	if digest == LatestRef || digest == AutosaveRef {
		return &ValidationError{Message: "cannot remove snapshot pointer " + digest}
	}
	latest, err := s.pointer(ctx, repo, LatestRef)
	if err != nil {
		return err
	}
	if latest == digest {
		return &ConflictError{Resource: "snapshot", Key: digest}
	}
	if _, err := s.archive.Fetch(ctx, repo, digest); err != nil {
		return err
	}
	if err := s.archive.Remove(ctx, repo, digest); err != nil {
		return fmt.Errorf("remove snapshot %s: %w", digest, err)
	}
	return nil
}

func (s *Snapshots) put(ctx context.Context, repo string, snap types.Snapshot) (string, error) {
	if repo == "" {
		return "", &ValidationError{Message: "repository name is required"}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	digest := computeDigest(data)

	if err := s.archive.Store(ctx, repo, digest, data); err != nil {
		return "", fmt.Errorf("store snapshot %s: %w", digest, err)
	}
	if err := s.archive.Store(ctx, repo, LatestRef, []byte(digest)); err != nil {
		return "", fmt.Errorf("update %s: %w", LatestRef, err)
	}
	return digest, nil
}

// pointer reads a reference key, returning "" when it is unset.
func (s *Snapshots) pointer(ctx context.Context, repo, ref string) (string, error) {
	if repo == "" {
		return "", &ValidationError{Message: "repository name is required"}
	}
	data, err := s.archive.Fetch(ctx, repo, ref)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Load reads the snapshot stored under ref, or the latest one when ref is empty.
func (s *Snapshots) Load(ctx context.Context, repo, ref string) (types.Snapshot, string, error) {
	if repo == "" {
		return types.Snapshot{}, "", &ValidationError{Message: "repository name is required"}
	}

	digest := strings.TrimSpace(ref)
	if digest == "" || digest == LatestRef {
		pointer, err := s.archive.Fetch(ctx, repo, LatestRef)
		if err != nil {
			return types.Snapshot{}, "", err
		}
		digest = strings.TrimSpace(string(pointer))
	}

	data, err := s.archive.Fetch(ctx, repo, digest)
	if err != nil {
		return types.Snapshot{}, "", err
	}
	if computeDigest(data) != digest {
		return types.Snapshot{}, "", &ConflictError{Resource: "snapshot", Key: digest}
	}

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.Snapshot{}, "", fmt.Errorf("decode snapshot %s: %w", digest, err)
	}
	return snap, digest, nil
}

// Exists reports whether repo has a latest snapshot.
func (s *Snapshots) Exists(ctx context.Context, repo string) (bool, error) {
	latest, err := s.pointer(ctx, repo, LatestRef)
	if err != nil {
		return false, err
	}
	return latest != "", nil
}

// Repos lists repositories with saved snapshots.
func (s *Snapshots) Repos(ctx context.Context) ([]string, error) {
	return s.archive.Repos(ctx)
}

func (s *Snapshots) Close() error {
	return s.archive.Close()
}

func isNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

func computeDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

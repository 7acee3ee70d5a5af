// Package storage persists object store snapshots. The object store itself
// lives in memory; archives keep its serialized state between runs.
package storage

import "context"

// Archive stores opaque payloads under repo/key.
type Archive interface {
	Store(ctx context.Context, repo, key string, data []byte) error
	Fetch(ctx context.Context, repo, key string) ([]byte, error)
	Remove(ctx context.Context, repo, key string) error
	// Repos lists repositories with at least one stored payload, sorted.
	Repos(ctx context.Context) ([]string, error)
	Close() error
}

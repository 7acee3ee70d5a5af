package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
)

const (
	boltRootBucket = "repos"
)

// BoltArchive stores payloads inside a BoltDB file, one bucket per repository.
type BoltArchive struct {
	db   *bolt.DB
	once sync.Once
}

// NewBoltArchive opens (or creates) a BoltDB archive at the provided path.
func NewBoltArchive(path string) (*BoltArchive, error) {
	if path == "" {
		return nil, &ValidationError{Message: "archive path is required"}
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := bolt.Open(cleaned, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", cleaned, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltRootBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltArchive{db: db}, nil
}

// Store writes payload data under repo/key.
func (a *BoltArchive) Store(ctx context.Context, repo, key string, data []byte) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		root, err := rootBucket(tx)
		if err != nil {
			return err
		}

		repoBucket, err := root.CreateBucketIfNotExists([]byte(repo))
		if err != nil {
			return err
		}

		return repoBucket.Put([]byte(key), data)
	})
}

// Fetch retrieves payload data for repo/key.
func (a *BoltArchive) Fetch(ctx context.Context, repo, key string) ([]byte, error) {
	var result []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		root, err := rootBucket(tx)
		if err != nil {
			return err
		}

		var data []byte
		if repoBucket := root.Bucket([]byte(repo)); repoBucket != nil {
			data = repoBucket.Get([]byte(key))
		}
		if data == nil {
			return &NotFoundError{Resource: "archive", Key: repo + "/" + key}
		}

		// Bolt values are only valid for the life of the transaction.
		result = append([]byte{}, data...)
		return nil
	})
	return result, err
}

// Remove deletes payload data and drops the repository bucket once empty.
func (a *BoltArchive) Remove(ctx context.Context, repo, key string) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		root, err := rootBucket(tx)
		if err != nil {
			return err
		}
		repoBucket := root.Bucket([]byte(repo))
		if repoBucket == nil {
			return nil
		}
		if err := repoBucket.Delete([]byte(key)); err != nil {
			return err
		}
		if k, _ := repoBucket.Cursor().First(); k == nil {
			return root.DeleteBucket([]byte(repo))
		}
		return nil
	})
}

// Repos lists the repository buckets in key order.
func (a *BoltArchive) Repos(ctx context.Context) ([]string, error) {
	var repos []string
	err := a.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		root, err := rootBucket(tx)
		if err != nil {
			return err
		}
		return root.ForEach(func(k, v []byte) error {
			if v == nil {
				repos = append(repos, string(k))
			}
			return nil
		})
	})
	return repos, err
}

// Close shuts down the Bolt DB.
func (a *BoltArchive) Close() error {
	var err error
	a.once.Do(func() {
		err = a.db.Close()
	})
	return err
}

func rootBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root := tx.Bucket([]byte(boltRootBucket))
	if root == nil {
		return nil, errors.New("archive root bucket missing")
	}
	return root, nil
}

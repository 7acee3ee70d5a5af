package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	archiveKeyPrefix = "archive"
	archiveKeysSet   = "archive-keys"
	archiveRepoSet   = "archive-repos"
)

// Config defines KeyDB connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	Database int
}

// KeyDBArchive stores payloads in KeyDB/Redis. Each repository keeps a set of
// its keys so it can be dropped from the repository index once empty.
type KeyDBArchive struct {
	client *redis.Client
}

// NewKeyDBArchive connects to KeyDB and verifies the connection.
func NewKeyDBArchive(cfg Config) (*KeyDBArchive, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to keydb: %w", err)
	}

	return &KeyDBArchive{client: client}, nil
}

func (a *KeyDBArchive) Store(ctx context.Context, repo, key string, data []byte) error {
	pipe := a.client.TxPipeline()
	pipe.Set(ctx, payloadKey(repo, key), data, 0)
	pipe.SAdd(ctx, repoKeysKey(repo), key)
	pipe.SAdd(ctx, archiveRepoSet, repo)
	_, err := pipe.Exec(ctx)
	return err
}

func (a *KeyDBArchive) Fetch(ctx context.Context, repo, key string) ([]byte, error) {
	data, err := a.client.Get(ctx, payloadKey(repo, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &NotFoundError{Resource: "archive", Key: repo + "/" + key}
		}
		return nil, err
	}
	return data, nil
}

func (a *KeyDBArchive) Remove(ctx context.Context, repo, key string) error {
	keysKey := repoKeysKey(repo)
	for {
		err := a.client.Watch(ctx, func(tx *redis.Tx) error {
			remaining, err := tx.SCard(ctx, keysKey).Result()
			if err != nil {
				return err
			}
			isMember, err := tx.SIsMember(ctx, keysKey, key).Result()
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, payloadKey(repo, key))
				pipe.SRem(ctx, keysKey, key)
				if isMember && remaining <= 1 {
					pipe.SRem(ctx, archiveRepoSet, repo)
				}
				return nil
			})
			return err
		}, keysKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
}

func (a *KeyDBArchive) Repos(ctx context.Context) ([]string, error) {
	repos, err := a.client.SMembers(ctx, archiveRepoSet).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(repos)
	return repos, nil
}

func (a *KeyDBArchive) Close() error {
	return a.client.Close()
}

func payloadKey(repo, key string) string {
	return fmt.Sprintf("%s:%s:%s", archiveKeyPrefix, repo, key)
}

func repoKeysKey(repo string) string {
	return fmt.Sprintf("%s:%s", archiveKeysSet, repo)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/onexay/objstore/internal/config"
	"github.com/onexay/objstore/internal/objstore"
	"github.com/onexay/objstore/internal/storage"
)

// Service holds the named object stores and their snapshot archive.
type Service struct {
	mu        sync.Mutex
	repos     map[string]*repository
	snapshots *storage.Snapshots
	autoSave  bool
	storeOpts []objstore.Option
	logger    *slog.Logger
}

// repository pairs a store with the lock that guards its whole surface.
type repository struct {
	mu    sync.Mutex
	name  string
	store *objstore.Store
}

// Options configures a Service built with NewWithSnapshots.
type Options struct {
	Snapshots *storage.Snapshots
	AutoSave  bool
	Logger    *slog.Logger
	StoreOpts []objstore.Option
}

// New constructs the service wiring from configuration.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Service, error) {
	var (
		archive storage.Archive
		err     error
	)

	switch cfg.Storage.Backend {
	case config.StorageBackendBolt:
		archive, err = storage.NewBoltArchive(cfg.Storage.BoltPath)
	case config.StorageBackendKeyDB:
		archive, err = storage.NewKeyDBArchive(cfg.Storage.KeyDB.Archive())
	default:
		archive = storage.NewMemoryArchive()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s archive: %w", cfg.Storage.Backend, err)
	}

	svc := NewWithSnapshots(Options{
		Snapshots: storage.NewSnapshots(archive),
		AutoSave:  cfg.Storage.AutoSave,
		Logger:    logger,
		StoreOpts: []objstore.Option{objstore.WithDefaultBranch(cfg.DefaultBranch)},
	})

	repos, err := archive.Repos(ctx)
	if err != nil {
		logger.Warn("listing archived repositories", slog.Any("error", err))
	} else {
		logger.Info("archive opened",
			slog.String("backend", string(cfg.Storage.Backend)),
			slog.Int("repos", len(repos)),
			slog.Bool("autosave", cfg.Storage.AutoSave),
		)
	}
	return svc, nil
}

// NewWithSnapshots builds a service around an existing snapshot store.
func NewWithSnapshots(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repos:     make(map[string]*repository),
		snapshots: opts.Snapshots,
		autoSave:  opts.AutoSave && opts.Snapshots != nil,
		storeOpts: opts.StoreOpts,
		logger:    logger,
	}
}

// Close releases the archive.
func (s *Service) Close() error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Close()
}

// CreateRepo registers a new, empty repository.
func (s *Service) CreateRepo(ctx context.Context, name string) error {
	if name == "" {
		return &storage.ValidationError{Message: "repository name is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[name]; ok {
		return &storage.ConflictError{Resource: "repository", Key: name}
	}
	if s.snapshots != nil {
		archived, err := s.snapshots.Exists(ctx, name)
		if err != nil {
			return err
		}
		if archived {
			return &storage.ConflictError{Resource: "repository", Key: name}
		}
	}

	repo := &repository{name: name, store: objstore.New(s.storeOpts...)}
	if s.autoSave {
		if err := s.save(ctx, repo); err != nil {
			return err
		}
	}
	s.repos[name] = repo
	s.logger.Info("repository created", slog.String("repo", name))
	return nil
}

// Repos lists repositories in memory and in the archive.
func (s *Service) Repos(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	names := make([]string, 0, len(s.repos))
	for name := range s.repos {
		names = append(names, name)
	}
	s.mu.Unlock()

	if s.snapshots != nil {
		archived, err := s.snapshots.Repos(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, archived...)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// repo returns a loaded repository, restoring it from the archive if needed.
func (s *Service) repo(ctx context.Context, name string) (*repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repo, ok := s.repos[name]; ok {
		return repo, nil
	}
	if s.snapshots == nil {
		return nil, &storage.NotFoundError{Resource: "repository", Key: name}
	}

	snap, digest, err := s.snapshots.Load(ctx, name, "")
	if err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &storage.NotFoundError{Resource: "repository", Key: name}
		}
		return nil, err
	}
	store, err := objstore.Restore(snap, s.storeOpts...)
	if err != nil {
		return nil, &storage.ConflictError{Resource: "snapshot", Key: digest}
	}

	repo := &repository{name: name, store: store}
	s.repos[name] = repo
	s.logger.Info("repository restored", slog.String("repo", name), slog.String("snapshot", digest))
	return repo, nil
}

// withRepo runs fn with the repository locked. When fn reports a mutation and
// autosave is enabled, a snapshot is written before the lock is released.
func (s *Service) withRepo(ctx context.Context, name string, fn func(*objstore.Store) (mutated bool)) error {
	repo, err := s.repo(ctx, name)
	if err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	if mutated := fn(repo.store); mutated && s.autoSave {
		if err := s.save(ctx, repo); err != nil {
			s.logger.Error("autosave failed", slog.String("repo", name), slog.Any("error", err))
		}
	}
	return nil
}

// SaveSnapshot writes the repository state to the archive.
func (s *Service) SaveSnapshot(ctx context.Context, name string) (string, error) {
	if s.snapshots == nil {
		return "", &storage.ValidationError{Message: "no archive configured"}
	}
	repo, err := s.repo(ctx, name)
	if err != nil {
		return "", err
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()

	snap, err := repo.store.Snapshot()
	if err != nil {
		return "", &storage.ConflictError{Resource: "repository", Key: name}
	}
	return s.snapshots.Save(ctx, name, snap)
}

// RestoreSnapshot replaces the repository state with a stored snapshot.
func (s *Service) RestoreSnapshot(ctx context.Context, name, ref string) (string, error) {
	if s.snapshots == nil {
		return "", &storage.ValidationError{Message: "no archive configured"}
	}
	snap, digest, err := s.snapshots.Load(ctx, name, ref)
	if err != nil {
		return "", err
	}
	store, err := objstore.Restore(snap, s.storeOpts...)
	if err != nil {
		return "", &storage.ConflictError{Resource: "snapshot", Key: digest}
	}

	s.mu.Lock()
	repo, ok := s.repos[name]
	if !ok {
		repo = &repository{name: name}
		s.repos[name] = repo
	}
	repo.mu.Lock()
	s.mu.Unlock()
	defer repo.mu.Unlock()

	repo.store = store
	if s.autoSave {
		if err := s.save(ctx, repo); err != nil {
			return "", err
		}
	}

	s.logger.Info("repository restored", slog.String("repo", name), slog.String("snapshot", digest))
	return digest, nil
}

// DeleteSnapshot removes a stored snapshot other than the latest one.
func (s *Service) DeleteSnapshot(ctx context.Context, name, digest string) error {
	if s.snapshots == nil {
		return &storage.ValidationError{Message: "no archive configured"}
	}
	if err := s.snapshots.Remove(ctx, name, digest); err != nil {
		return err
	}
	s.logger.Info("snapshot removed", slog.String("repo", name), slog.String("snapshot", digest))
	return nil
}

// save autosaves repo. It must be called with repo.mu held or before repo
// is shared.
func (s *Service) save(ctx context.Context, repo *repository) error {
	snap, err := repo.store.Snapshot()
	if err != nil {
		return err
	}
	digest, err := s.snapshots.Autosave(ctx, repo.name, snap)
	if err != nil {
		return err
	}
	s.logger.Debug("snapshot saved", slog.String("repo", repo.name), slog.String("snapshot", digest))
	return nil
}

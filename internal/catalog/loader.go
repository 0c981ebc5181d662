package catalog

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/lattice-saas/lattice/internal/authz"
)

// ErrNotLoaded indicates the snapshot was never materialized.
var ErrNotLoaded = errors.New("catalog: not loaded")

// Loader materializes the catalog into an immutable engine snapshot and
// swaps it atomically on reload. It implements authz.CatalogSource, so
// in-flight checks keep reading the snapshot they started with.
type Loader struct {
	repo    RepositoryPort
	current atomic.Pointer[authz.Snapshot]
}

// NewLoader constructs a Loader over the repository.
func NewLoader(repo RepositoryPort) *Loader {
	return &Loader{repo: repo}
}

// Reload rebuilds the snapshot from storage.
func (l *Loader) Reload(ctx context.Context) error {
	roles, perms, err := l.repo.LoadCatalog(ctx)
	if err != nil {
		return err
	}
	l.current.Store(authz.NewSnapshot(roles, perms))
	return nil
}

// Catalog returns the current snapshot.
func (l *Loader) Catalog(ctx context.Context) (authz.Catalog, error) {
	snapshot := l.current.Load()
	if snapshot == nil {
		return nil, ErrNotLoaded
	}
	return snapshot, nil
}

var _ authz.CatalogSource = (*Loader)(nil)

package repository

import (
	"context"

	"github.com/modelboard/webapp/app/entity"
)

// Loader memoizes lookups by key for the lifetime of a single request, so
// that repeated reads of the same record within one request hit the database
// once. Misses are cached too. Not safe for concurrent use; each request gets
// its own instance.
type Loader[T any] struct {
	fetch func(ctx context.Context, key string) (*T, error)
	cache map[string]*T
}

func NewLoader[T any](fetch func(ctx context.Context, key string) (*T, error)) *Loader[T] {
	return &Loader[T]{
		fetch: fetch,
		cache: make(map[string]*T),
	}
}

func (l *Loader[T]) Load(ctx context.Context, key string) (*T, error) {
	if cached, ok := l.cache[key]; ok {
		return cached, nil
	}
	row, err := l.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	l.cache[key] = row
	return row, nil
}

// Forget drops a cached entry so the next Load re-reads the committed row.
// Used after writes.
func (l *Loader[T]) Forget(key string) {
	delete(l.cache, key)
}

// Loaders is the per-request batching cache. It is rebuilt for every request
// and never outlives it.
type Loaders struct {
	User                        *Loader[entity.User]
	RefreshToken                *Loader[entity.RefreshToken]
	RefreshTokenByAccessTokenID *Loader[entity.RefreshToken]
	Listing                     *Loader[entity.Listing]
}

func NewLoaders(users *UserRepository, refreshTokens *RefreshTokenRepository, listings *ListingRepository) *Loaders {
	return &Loaders{
		User:                        NewLoader(users.FindByID),
		RefreshToken:                NewLoader(refreshTokens.FindByID),
		RefreshTokenByAccessTokenID: NewLoader(refreshTokens.FindByAccessTokenID),
		Listing:                     NewLoader(listings.FindByID),
	}
}

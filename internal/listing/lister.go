package listing

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"traitforge/internal/blob"
	"traitforge/internal/observability"
)

// Lister returns the filenames directly under a store directory.
//
// Listing failures are soft: they are logged and yield an empty result, which
// selection treats as "category unavailable". Failures are not cached, so the
// next call retries. Successful results, including empty ones, are cached
// under the exact directory string. Concurrent first callers for the same
// directory share a single store query.
type Lister struct {
	store   blob.Store
	cache   Cache
	group   singleflight.Group
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Options configures a Lister. A nil Cache means a forever in-memory cache.
type Options struct {
	Cache   Cache
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewLister builds a Lister over store.
func NewLister(store blob.Store, opts Options) *Lister {
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache(0, nil)
	}
	return &Lister{
		store:   store,
		cache:   cache,
		logger:  observability.OrNop(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Cache exposes the backing cache, e.g. for invalidation.
func (l *Lister) Cache() Cache { return l.cache }

// List returns the ordered filenames directly under dir ("" is the store root).
func (l *Lister) List(ctx context.Context, dir string) []string {
	dir = strings.Trim(dir, "/")
	if names, ok := l.cached(ctx, dir); ok {
		l.metrics.ObserveListing(observability.ListingHit)
		return names
	}
	v, err, _ := l.group.Do(dir, func() (any, error) {
		if names, ok := l.cached(ctx, dir); ok {
			return names, nil
		}
		l.metrics.ObserveListing(observability.ListingMiss)
		names, err := l.query(ctx, dir)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(ctx, dir, names); err != nil {
			l.logger.Warn("listing cache write failed", zap.String("path", dir), zap.Error(err))
		}
		return names, nil
	})
	if err != nil {
		l.metrics.ObserveListing(observability.ListingError)
		l.logger.Warn("listing failed", zap.String("path", dir), zap.Error(err))
		return []string{}
	}
	return append([]string(nil), v.([]string)...)
}

func (l *Lister) cached(ctx context.Context, dir string) ([]string, bool) {
	names, ok, err := l.cache.Get(ctx, dir)
	if err != nil {
		l.logger.Warn("listing cache read failed", zap.String("path", dir), zap.Error(err))
		return nil, false
	}
	return names, ok
}

func (l *Lister) query(ctx context.Context, dir string) ([]string, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	infos, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		names = append(names, path.Base(rest))
	}
	return names, nil
}

package gcp

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
	"github.com/halcyonlabs/carousel-pipeline/internal/platform/logger"
)

// PoolStore lists and fetches source images from the remote asset
// repository. Each pool is a prefix in one GCS bucket.
type PoolStore interface {
	ListAssets(ctx context.Context, pool domain.Pool) ([]string, error)
	FetchAsset(ctx context.Context, pool domain.Pool, assetID string) (domain.AssetRecord, error)
}

type poolStore struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	prefixes      map[domain.Pool]string
	callTimeout   time.Duration

	mu        sync.Mutex
	listCache map[domain.Pool][]string
}

func NewPoolStore(log *logger.Logger, bucketName string, prefixes map[domain.Pool]string, callTimeout time.Duration) (PoolStore, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, fmt.Errorf("missing asset bucket name")
	}
	if callTimeout <= 0 {
		callTimeout = 2 * time.Minute
	}

	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	stClient, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &poolStore{
		log:           log.With("service", "PoolStore"),
		storageClient: stClient,
		bucketName:    bucketName,
		prefixes:      prefixes,
		callTimeout:   callTimeout,
		listCache:     map[domain.Pool][]string{},
	}, nil
}

func (ps *poolStore) prefixFor(pool domain.Pool) (string, error) {
	p, ok := ps.prefixes[pool]
	if !ok {
		return "", fmt.Errorf("unknown pool: %s", pool)
	}
	return p, nil
}

// ListAssets returns the object keys of the pool's images. Listings are
// cached per process; a run lives well inside the cache's usefulness.
func (ps *poolStore) ListAssets(ctx context.Context, pool domain.Pool) ([]string, error) {
	ps.mu.Lock()
	if cached, ok := ps.listCache[pool]; ok {
		ps.mu.Unlock()
		return cached, nil
	}
	ps.mu.Unlock()

	prefix, err := ps.prefixFor(pool)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()

	it := ps.storageClient.Bucket(ps.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list pool %s: %w", pool, err)
		}
		if attrs.Name == prefix {
			continue
		}
		if !isImageKey(attrs.Name) {
			continue
		}
		out = append(out, attrs.Name)
	}

	ps.log.Debug("Listed pool assets", "pool", string(pool), "count", len(out))

	ps.mu.Lock()
	ps.listCache[pool] = out
	ps.mu.Unlock()
	return out, nil
}

func (ps *poolStore) FetchAsset(ctx context.Context, pool domain.Pool, assetID string) (domain.AssetRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()

	r, err := ps.storageClient.Bucket(ps.bucketName).Object(assetID).NewReader(ctx)
	if err != nil {
		return domain.AssetRecord{}, fmt.Errorf("open object %q: %w", assetID, err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return domain.AssetRecord{}, fmt.Errorf("read object %q: %w", assetID, err)
	}

	return domain.AssetRecord{
		Pool:      pool,
		AssetID:   assetID,
		Content:   content,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func isImageKey(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".webp":
		return true
	}
	return false
}

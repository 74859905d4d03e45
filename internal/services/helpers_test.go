package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/halcyonlabs/carousel-pipeline/internal/domain"
)

// fakePoolStore serves assets from memory and records fetch order.
type fakePoolStore struct {
	mu      sync.Mutex
	assets  map[domain.Pool][]string
	content map[string][]byte
	fetched []string

	listErr  error
	fetchErr error
}

func newFakePoolStore() *fakePoolStore {
	return &fakePoolStore{
		assets:  make(map[domain.Pool][]string),
		content: make(map[string][]byte),
	}
}

func (f *fakePoolStore) add(pool domain.Pool, assetID string, content []byte) {
	f.assets[pool] = append(f.assets[pool], assetID)
	f.content[assetID] = content
}

func (f *fakePoolStore) ListAssets(_ context.Context, pool domain.Pool) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]string, len(f.assets[pool]))
	copy(out, f.assets[pool])
	return out, nil
}

func (f *fakePoolStore) FetchAsset(_ context.Context, pool domain.Pool, assetID string) (domain.AssetRecord, error) {
	if f.fetchErr != nil {
		return domain.AssetRecord{}, f.fetchErr
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, assetID)
	f.mu.Unlock()
	content, ok := f.content[assetID]
	if !ok {
		return domain.AssetRecord{}, fmt.Errorf("asset %s not found in %s", assetID, pool)
	}
	return domain.AssetRecord{Pool: pool, AssetID: assetID, Content: content}, nil
}

func makePNG(tb testing.TB, w, h int, c color.NRGBA) []byte {
	tb.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(tb testing.TB, data []byte) (int, int) {
	tb.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		tb.Fatalf("decode image: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// Package images implements the image pipeline: extraction of embedded
// references from Markdown, content-addressed deduplication against the
// object store, and rewriting of resolved URLs back into the body.
package images

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"strconv"
	"sync"
	"time"

	_ "image/gif"
	_ "image/png"

	backoff "github.com/cenkalti/backoff/v4"

	"pagesync/internal/blob"
	"pagesync/internal/model"
)

// jpegQuality is the fixed quality for the normalized output format.
// Not configurable per call.
const jpegQuality = 80

// FetchFunc supplies the raw bytes for one image reference. The caller
// picks the strategy (HTTP download vs local file read) based on the
// document's origin.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Resolver deduplicates and uploads images. The seen set counts
// first-time uploads for diagnostics only; correctness comes from the
// existence probe, which is always performed.
type Resolver struct {
	store blob.Store

	mu       sync.Mutex
	seen     map[string]struct{}
	uploaded int
}

func NewResolver(store blob.Store) *Resolver {
	return &Resolver{store: store, seen: make(map[string]struct{})}
}

// Resolve fetches, fingerprints, and uploads (or dedup-skips) one image.
// Per-image failures are logged and return the ref unchanged with no
// ResolvedURL. The returned error is non-nil only for the fatal class:
// object-store authentication failure.
func (r *Resolver) Resolve(ctx context.Context, ref model.ImageRef, fetch FetchFunc) (model.ImageRef, error) {
	data, err := fetchWithRetry(ctx, fetch)
	if err != nil {
		log.Printf("images: fetch %s: %v", ref.Locator, err)
		return ref, nil
	}

	sum := md5.Sum(data)
	ref.Fingerprint = hex.EncodeToString(sum[:])
	key := string(ref.Role) + "/" + ref.Fingerprint + ".jpg"

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		if isFatal(err) {
			return ref, err
		}
		log.Printf("images: probe %s: %v", key, err)
		return ref, nil
	}
	if exists {
		ref.ResolvedURL = r.store.PublicURL(key)
		return ref, nil
	}

	transcoded, err := transcode(data)
	if err != nil {
		log.Printf("images: transcode %s: %v", ref.Locator, err)
		return ref, nil
	}

	url, err := r.store.Put(ctx, key, transcoded, "image/jpeg", map[string]string{
		"original-bytes":   strconv.Itoa(len(data)),
		"transcoded-bytes": strconv.Itoa(len(transcoded)),
		"fingerprint":      ref.Fingerprint,
		"role":             string(ref.Role),
	})
	if err != nil {
		if isFatal(err) {
			return ref, err
		}
		log.Printf("images: upload %s: %v", key, err)
		return ref, nil
	}

	r.mu.Lock()
	if _, ok := r.seen[key]; !ok {
		r.seen[key] = struct{}{}
		r.uploaded++
	}
	r.mu.Unlock()

	ref.ResolvedURL = url
	return ref, nil
}

// ResolveAll fans out one goroutine per reference and joins before
// returning, so the rewrite map is fixed once this call completes.
// Order of the returned slice matches the input.
func (r *Resolver) ResolveAll(ctx context.Context, refs []model.ImageRef, fetchFor func(model.ImageRef) FetchFunc) ([]model.ImageRef, error) {
	resolved := make([]model.ImageRef, len(refs))
	errs := make([]error, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref model.ImageRef) {
			defer wg.Done()
			resolved[i], errs[i] = r.Resolve(ctx, ref, fetchFor(ref))
		}(i, ref)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return resolved, err
		}
	}
	return resolved, nil
}

// Uploaded reports how many distinct objects this resolver uploaded
// during the current run.
func (r *Resolver) Uploaded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uploaded
}

func fetchWithRetry(ctx context.Context, fetch FetchFunc) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	var data []byte
	err := backoff.Retry(func() error {
		var err error
		data, err = fetch(ctx)
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// transcode re-encodes the image to the single normalized output format.
func transcode(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func isFatal(err error) bool {
	return errors.Is(err, blob.ErrAuth)
}

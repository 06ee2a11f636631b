package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/scrypster/intentgap/internal/llm"
	"github.com/scrypster/intentgap/internal/storage"
	"github.com/scrypster/intentgap/pkg/types"
)

// Embedder turns message texts into unit-length vectors, backed by a content
// hash cache so reruns over an unchanged corpus skip the provider.
type Embedder struct {
	generator llm.EmbeddingGenerator
	cache     storage.EmbeddingCache
	workers   int
}

// NewEmbedder creates an Embedder. cache may be nil to disable caching.
func NewEmbedder(generator llm.EmbeddingGenerator, cache storage.EmbeddingCache, workers int) *Embedder {
	if workers <= 0 {
		workers = 1
	}
	return &Embedder{generator: generator, cache: cache, workers: workers}
}

// cacheKey derives the cache key from the model and the exact text, so a
// model change invalidates every entry.
func (e *Embedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(e.generator.GetModel() + "|" + text))
	return hex.EncodeToString(h[:])
}

// EmbedAll embeds all texts, preserving input order. Workers run
// concurrently up to the configured limit; the first error cancels the rest.
// Every returned vector is normalized to unit length.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([]types.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([]types.Vector, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	hits := 0
	for i, text := range texts {
		// Cache lookups stay on the caller's goroutine; only provider
		// calls fan out.
		if e.cache != nil {
			if vec, err := e.cache.Get(ctx, e.cacheKey(text)); err == nil {
				vectors[i] = vec
				hits++
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("embedding cache lookup failed: %w", err)
			}
		}

		i, text := i, text
		g.Go(func() error {
			vec, err := e.generator.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed message %d: %w", i, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("provider returned empty embedding for message %d", i)
			}

			v := types.Vector(vec)
			normalize(v)
			vectors[i] = v

			if e.cache != nil {
				if err := e.cache.Put(gctx, e.cacheKey(text), e.generator.GetModel(), v); err != nil {
					log.Printf("WARNING: failed to cache embedding %d: %v", i, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if hits > 0 {
		log.Printf("Embedded %d texts (%d cache hits)", len(texts), hits)
	}
	return vectors, nil
}

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/scrypster/intentgap/internal/storage"
	"github.com/scrypster/intentgap/pkg/types"
)

// topicEmbedding is a deterministic embedding fake: each text lands on the
// unit axis of the first topic whose keywords it mentions. Texts sharing a
// topic embed identically, so clustering behavior is exact and repeatable.
type topicEmbedding struct {
	mu    sync.Mutex
	calls int
}

var topicKeywords = []struct {
	axis     int
	keywords []string
}{
	{0, []string{"password", "login", "sign in", "locked out", "account access"}},
	{1, []string{"order", "package", "tracking", "delivery", "shipment"}},
	{2, []string{
		"partner", "b2b", "collab", "franchise", "influencer", "reseller",
		"distributor", "vendor", "sponsor", "bulk", "affiliate", "marketing",
		"business", "sales team", "list my products", "work with you",
		"sell your products",
	}},
	{3, []string{"refund", "return", "damaged", "broken"}},
}

const topicDims = 5

func (f *topicEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	vec := make([]float32, topicDims)
	lower := strings.ToLower(text)
	for _, topic := range topicKeywords {
		for _, kw := range topic.keywords {
			if strings.Contains(lower, kw) {
				vec[topic.axis] = 1
				return vec, nil
			}
		}
	}
	vec[topicDims-1] = 1 // catch-all axis
	return vec, nil
}

func (f *topicEmbedding) GetModel() string { return "topic-fake" }

func (f *topicEmbedding) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// scriptedOracle returns canned responses keyed by a representative
// substring, with a fallback default. It records how many calls it saw.
type scriptedOracle struct {
	mu        sync.Mutex
	calls     int
	responses map[string]string // substring of prompt -> response
	fallback  string
	err       error
}

func (o *scriptedOracle) Complete(_ context.Context, prompt string) (string, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()

	if o.err != nil {
		return "", o.err
	}
	for needle, resp := range o.responses {
		if strings.Contains(prompt, needle) {
			return resp, nil
		}
	}
	return o.fallback, nil
}

func (o *scriptedOracle) GetModel() string { return "oracle-fake" }

func (o *scriptedOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// memoryCache is an in-memory storage.EmbeddingCache.
type memoryCache struct {
	mu   sync.Mutex
	data map[string]types.Vector
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]types.Vector)}
}

func (c *memoryCache) Get(_ context.Context, key string) (types.Vector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, storage.ErrNotFound
}

func (c *memoryCache) Put(_ context.Context, key string, _ string, vec types.Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = vec
	return nil
}

var errProviderDown = errors.New("provider down")

// failingEmbedding always errors, for propagation tests.
type failingEmbedding struct{}

func (failingEmbedding) Embed(context.Context, string) ([]float32, error) {
	return nil, errProviderDown
}

func (failingEmbedding) GetModel() string { return "failing-fake" }

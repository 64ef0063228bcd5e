package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AICacheEntry is one cached provider response: the raw completion text
// and the normalized payload derived from it. Readers must re-normalize
// Payload before use; entries written by older builds may predate current
// repair rules.
type AICacheEntry struct {
	Raw     string          `json:"raw"`
	Payload json.RawMessage `json:"payload"`
}

// AICacheRepository caches provider responses keyed by (model, prompt).
// The cache is advisory: a miss or backend failure never fails the caller.
type AICacheRepository interface {
	// Get returns the cached entry, or nil on a miss.
	Get(ctx context.Context, model, prompt string) (*AICacheEntry, error)
	Set(ctx context.Context, model, prompt string, entry *AICacheEntry) error
}

// aiCacheRepository implements AICacheRepository on Redis.
type aiCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAICacheRepository creates a Redis-backed AI response cache. A nil
// client yields a disabled cache that always misses.
func NewAICacheRepository(client *redis.Client, ttl time.Duration) AICacheRepository {
	if client == nil {
		return &noopAICache{}
	}
	return &aiCacheRepository{client: client, ttl: ttl}
}

var _ AICacheRepository = (*aiCacheRepository)(nil)

// cacheKey hashes the prompt so arbitrarily long prompts map to a fixed
// key size. Format: aicache:<model>::<sha256(prompt)>.
func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "aicache:" + model + "::" + hex.EncodeToString(sum[:])
}

func (r *aiCacheRepository) Get(ctx context.Context, model, prompt string) (*AICacheEntry, error) {
	data, err := r.client.Get(ctx, cacheKey(model, prompt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read AI cache: %w", err)
	}

	var entry AICacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode AI cache entry: %w", err)
	}

	return &entry, nil
}

func (r *aiCacheRepository) Set(ctx context.Context, model, prompt string, entry *AICacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode AI cache entry: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(model, prompt), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write AI cache: %w", err)
	}

	return nil
}

// noopAICache is the disabled cache: every read misses, writes vanish.
type noopAICache struct{}

func (n *noopAICache) Get(ctx context.Context, model, prompt string) (*AICacheEntry, error) {
	return nil, nil
}

func (n *noopAICache) Set(ctx context.Context, model, prompt string, entry *AICacheEntry) error {
	return nil
}

var _ AICacheRepository = (*noopAICache)(nil)

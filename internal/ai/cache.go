package ai

import (
	"strings"
	"sync"
	"time"

	"github.com/chitragupta/khata/internal/model"
)

// Similarity weights for the cache lookup. Two transactions are "the same"
// for caching purposes at a combined score of 0.85 or above.
const (
	similarityThreshold = 0.85

	descriptionWeight = 0.4
	storeWeight       = 0.3
	amountWeight      = 0.2
	identityWeight    = 0.1

	amountSimilarityBand = 0.05
)

// cachedResult holds one remembered provider result.
type cachedResult struct {
	timestamp   time.Time
	fingerprint string
	description string
	store       string
	upiID       string
	personName  string
	result      model.Result
	amount      float64
	hitCount    int
}

// ResultCache remembers provider results keyed by a structural fingerprint,
// with similarity-based reuse for near-identical transactions. Entries
// expire on TTL and the cache is capped with oldest-first eviction.
type ResultCache struct {
	entries    map[string]*cachedResult
	ttl        time.Duration
	maxEntries int
	mu         sync.RWMutex
}

// NewResultCache creates a result cache. Zero values select the defaults
// (24h TTL, 1000 entries).
func NewResultCache(ttl time.Duration, maxEntries int) *ResultCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if maxEntries == 0 {
		maxEntries = 1000
	}
	return &ResultCache{
		entries:    make(map[string]*cachedResult),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Get returns a cached result for the transaction: an exact fingerprint hit,
// or the most similar unexpired entry at or above the similarity threshold.
func (c *ResultCache) Get(txn model.Transaction) (model.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, ok := c.entries[txn.Fingerprint()]; ok && now.Sub(entry.timestamp) < c.ttl {
		entry.hitCount++
		return entry.result, true
	}

	var best *cachedResult
	var bestScore float64
	for _, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			continue
		}
		score := similarity(txn, entry)
		if score >= similarityThreshold && score > bestScore {
			best = entry
			bestScore = score
		}
	}

	if best != nil {
		best.hitCount++
		return best.result, true
	}
	return model.Result{}, false
}

// Put stores a provider result for the transaction, evicting the oldest
// entries once the cap is exceeded.
func (c *ResultCache) Put(txn model.Transaction, result model.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fingerprint := txn.Fingerprint()
	c.entries[fingerprint] = &cachedResult{
		fingerprint: fingerprint,
		description: normalize(txn.Description),
		store:       normalize(txn.Store),
		upiID:       normalize(txn.UPIID),
		personName:  normalize(txn.PersonName),
		amount:      txn.Amount,
		result:      result,
		timestamp:   time.Now(),
	}

	for len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.timestamp.Before(oldest) {
				oldestKey = key
				oldest = entry.timestamp
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Size returns the number of cached entries.
func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// similarity scores a transaction against a cached entry with the weighted
// field comparison: description (exact or substring), store, amount band,
// and UPI-or-person identity.
func similarity(txn model.Transaction, entry *cachedResult) float64 {
	var score float64

	desc := normalize(txn.Description)
	if desc != "" && entry.description != "" {
		if desc == entry.description {
			score += descriptionWeight
		} else if strings.Contains(desc, entry.description) || strings.Contains(entry.description, desc) {
			score += descriptionWeight
		}
	}

	store := normalize(txn.Store)
	if store != "" && store == entry.store {
		score += storeWeight
	}

	if amountsClose(txn.Amount, entry.amount, amountSimilarityBand) {
		score += amountWeight
	}

	upi := normalize(txn.UPIID)
	person := normalize(txn.PersonName)
	if (upi != "" && upi == entry.upiID) || (person != "" && person == entry.personName) {
		score += identityWeight
	}

	return score
}

func amountsClose(a, b, fraction float64) bool {
	larger := a
	if b > larger {
		larger = b
	}
	if larger == 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= larger*fraction
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

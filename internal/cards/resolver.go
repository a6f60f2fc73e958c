// Package cards resolves Arena grpIds to card metadata through four tiers:
// an in-process map, a persistent sqlite cache, a join against the deck
// builder's card catalog, and a rate-limited Scryfall lookup. Concurrent
// resolves for the same id share one in-flight lookup.
package cards

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/singleflight"
)

// Resolver coordinates the cache tiers. Each instance owns its own caches,
// rate-limit clock, and in-flight table, so tests can run isolated resolvers.
type Resolver struct {
	store   Store
	catalog Catalog
	remote  RemoteLookup

	mu    sync.RWMutex
	cache map[int]*Card

	group singleflight.Group

	// attempted remembers ids already sent to the remote API this process
	// lifetime, so batch and warm passes never repeat a remote call for an
	// id that already came back unknown.
	attemptedMu sync.Mutex
	attempted   *bloom.BloomFilter
}

// NewResolver builds a resolver. catalog and remote may be nil; the
// corresponding tiers are skipped.
func NewResolver(store Store, catalog Catalog, remote RemoteLookup) *Resolver {
	return &Resolver{
		store:     store,
		catalog:   catalog,
		remote:    remote,
		cache:     make(map[int]*Card),
		attempted: bloom.NewWithEstimates(100000, 0.001),
	}
}

// Resolve returns metadata for one grpId. It never returns a nil card on a
// nil error: an id with no data anywhere yields a synthesized placeholder,
// which is cached so the remote is not asked again.
func (r *Resolver) Resolve(ctx context.Context, grpID int) (*Card, error) {
	r.mu.RLock()
	card, ok := r.cache[grpID]
	r.mu.RUnlock()
	if ok {
		return card, nil
	}

	v, err, _ := r.group.Do(strconv.Itoa(grpID), func() (any, error) {
		return r.resolveSlow(ctx, grpID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Card), nil
}

// resolveSlow walks the persistent tiers. Exactly one caller per id runs
// this at a time; the others wait on the singleflight result.
func (r *Resolver) resolveSlow(ctx context.Context, grpID int) (*Card, error) {
	// Another caller may have finished while we waited on the flight group.
	r.mu.RLock()
	card, ok := r.cache[grpID]
	r.mu.RUnlock()
	if ok {
		return card, nil
	}

	if r.store != nil {
		card, err := r.store.Get(ctx, grpID)
		if err != nil {
			log.Printf("[Resolver] cache read for %d: %v", grpID, err)
		} else if card != nil {
			r.remember(card)
			return card, nil
		}
	}

	if r.catalog != nil {
		card, err := r.catalog.CardByArenaID(ctx, grpID)
		if err != nil {
			log.Printf("[Resolver] catalog lookup for %d: %v", grpID, err)
		} else if card != nil {
			r.persist(ctx, card)
			r.remember(card)
			return card, nil
		}
	}

	if r.remote != nil && !r.alreadyAttempted(grpID) {
		card, err := r.remote.CardByArenaID(ctx, grpID)
		if err != nil {
			log.Printf("[Resolver] remote lookup for %d: %v", grpID, err)
		} else if card != nil {
			r.persist(ctx, card)
			r.remember(card)
			return card, nil
		}
	}

	// Nothing anywhere: synthesize, cache, move on.
	card = placeholderCard(grpID)
	r.persist(ctx, card)
	r.remember(card)
	return card, nil
}

// ResolveAll fans out per id with the same dedup guarantee as Resolve.
func (r *Resolver) ResolveAll(ctx context.Context, grpIDs []int) (map[int]*Card, error) {
	out := make(map[int]*Card, len(grpIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for _, id := range grpIDs {
		mu.Lock()
		_, seen := out[id]
		mu.Unlock()
		if seen {
			continue
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			card, err := r.Resolve(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			out[id] = card
		}(id)
	}
	wg.Wait()

	if firstErr != nil {
		return out, fmt.Errorf("batch resolve: %w", firstErr)
	}
	return out, nil
}

// Warm bulk-loads ids from the persistent cache straight into the in-process
// map, skipping ids already cached. Ids missing from the store are left for
// Resolve to handle on demand.
func (r *Resolver) Warm(ctx context.Context, grpIDs []int) error {
	if r.store == nil {
		return nil
	}

	var missing []int
	r.mu.RLock()
	for _, id := range grpIDs {
		if _, ok := r.cache[id]; !ok {
			missing = append(missing, id)
		}
	}
	r.mu.RUnlock()
	if len(missing) == 0 {
		return nil
	}

	found, err := r.store.GetMany(ctx, missing)
	if err != nil {
		return fmt.Errorf("warm load: %w", err)
	}
	r.mu.Lock()
	for _, card := range found {
		if _, ok := r.cache[card.GrpID]; !ok {
			r.cache[card.GrpID] = card
		}
	}
	r.mu.Unlock()
	return nil
}

// CachedCount reports the in-process cache size, for diagnostics.
func (r *Resolver) CachedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) remember(card *Card) {
	r.mu.Lock()
	r.cache[card.GrpID] = card
	r.mu.Unlock()
}

func (r *Resolver) persist(ctx context.Context, card *Card) {
	if r.store == nil {
		return
	}
	if err := r.store.Put(ctx, card); err != nil {
		log.Printf("[Resolver] cache write for %d: %v", card.GrpID, err)
	}
}

func (r *Resolver) alreadyAttempted(grpID int) bool {
	key := []byte(strconv.Itoa(grpID))
	r.attemptedMu.Lock()
	defer r.attemptedMu.Unlock()
	if r.attempted.Test(key) {
		return true
	}
	r.attempted.Add(key)
	return false
}

package subs

import (
	"sort"
	"sync"

	"main/internal/schema"
)

type key struct {
	mode     schema.SubscriptionMode
	exchange schema.ExchangeType
}

// Registry holds the desired subscription state independent of transport
// lifecycle, so the feed connection can replay it after any reconnect
// without consulting callers.
type Registry struct {
	mu      sync.Mutex
	entries map[key]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[key]map[string]struct{})}
}

// Subscribe unions tokens into the (mode, exchange) entry. Idempotent.
// Returns the number of tokens newly added.
func (r *Registry) Subscribe(mode schema.SubscriptionMode, exchange schema.ExchangeType, tokens []string) int {
	k := key{mode: mode, exchange: exchange}
	added := 0
	r.mu.Lock()
	set, ok := r.entries[k]
	if !ok {
		set = make(map[string]struct{}, len(tokens))
		r.entries[k] = set
	}
	for _, token := range tokens {
		if _, exists := set[token]; !exists {
			set[token] = struct{}{}
			added++
		}
	}
	r.mu.Unlock()
	return added
}

// Unsubscribe removes tokens from the (mode, exchange) entry. An entry left
// empty is removed entirely. Returns the number of tokens removed.
func (r *Registry) Unsubscribe(mode schema.SubscriptionMode, exchange schema.ExchangeType, tokens []string) int {
	k := key{mode: mode, exchange: exchange}
	removed := 0
	r.mu.Lock()
	set, ok := r.entries[k]
	if ok {
		for _, token := range tokens {
			if _, exists := set[token]; exists {
				delete(set, token)
				removed++
			}
		}
		if len(set) == 0 {
			delete(r.entries, k)
		}
	}
	r.mu.Unlock()
	return removed
}

// Snapshot returns an immutable copy of the desired state, sorted by mode
// then exchange with sorted tokens. Replays read only the copy.
func (r *Registry) Snapshot() []schema.Subscription {
	r.mu.Lock()
	out := make([]schema.Subscription, 0, len(r.entries))
	for k, set := range r.entries {
		tokens := make([]string, 0, len(set))
		for token := range set {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)
		out = append(out, schema.Subscription{Mode: k.mode, Exchange: k.exchange, Tokens: tokens})
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].Exchange < out[j].Exchange
	})
	return out
}

// Count returns the total number of desired tokens.
func (r *Registry) Count() int {
	r.mu.Lock()
	count := 0
	for _, set := range r.entries {
		count += len(set)
	}
	r.mu.Unlock()
	return count
}

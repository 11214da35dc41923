// Package collection implements an insertion-ordered, in-memory cache of
// remote entities keyed by ID with name-based fallback lookup.
//
// A Collection is confined to one goroutine; it has no internal locking.
package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/m-mizutani/ctxlog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entity is the contract every cached record satisfies.
type Entity interface {
	// Key is the entity's unique ID.
	Key() string
	// Aliases lists human-readable names in priority tiers. Lookup tries
	// each tier in order and stops at the first tier with any match.
	Aliases() [][]string
}

// Lister fetches one page of raw records from a listing endpoint.
type Lister interface {
	Listing(ctx context.Context, path string, page int) ([]json.RawMessage, bool, error)
}

// ParseFunc builds an entity from one raw record.
type ParseFunc[T Entity] func(raw []byte) (T, error)

// Match is the outcome of a Lookup.
type Match int

const (
	// NotFound means neither the key nor any alias matched.
	NotFound Match = iota
	// Found means exactly one entity matched.
	Found
	// Ambiguous means several entities share the matching alias.
	Ambiguous
)

func (m Match) String() string {
	switch m {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not found"
	}
}

// Collection is an ordered ID to entity cache.
type Collection[T Entity] struct {
	path    string
	paged   bool
	parse   ParseFunc[T]
	entries *orderedmap.OrderedMap[string, T]
}

// New returns an empty collection populated from path. When paged is false
// population stops after the first page.
func New[T Entity](path string, paged bool, parse ParseFunc[T]) *Collection[T] {
	return &Collection[T]{
		path:    path,
		paged:   paged,
		parse:   parse,
		entries: orderedmap.New[string, T](),
	}
}

// Path returns the listing endpoint.
func (c *Collection[T]) Path() string { return c.path }

// Len returns the number of cached entities.
func (c *Collection[T]) Len() int { return c.entries.Len() }

// Populate fetches every page from the listing endpoint and adds each record.
// Errors from the lister are returned unwrapped so callers can match the
// api error types; it never retries.
func (c *Collection[T]) Populate(ctx context.Context, l Lister) error {
	logger := ctxlog.From(ctx)
	for page := 0; ; page++ {
		records, hasMore, err := l.Listing(ctx, c.path, page)
		if err != nil {
			return err
		}
		for _, raw := range records {
			if _, err := c.Add(raw); err != nil {
				return fmt.Errorf("collection.Populate: %s: %w", c.path, err)
			}
		}
		logger.Debug("listing page fetched", "path", c.path, "page", page, "records", len(records), "has_more", hasMore)
		// An empty page that claims more would loop forever.
		if !c.paged || !hasMore || len(records) == 0 {
			return nil
		}
	}
}

// Add parses raw and stores the entity under its key. Adding an existing key
// replaces the entity but keeps its original position.
func (c *Collection[T]) Add(raw []byte) (T, error) {
	e, err := c.parse(raw)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Put(e)
	return e, nil
}

// Put stores an already parsed entity with the same semantics as Add.
func (c *Collection[T]) Put(e T) {
	c.entries.Set(e.Key(), e)
}

// Get returns the entity matching idOrName. It reports false when nothing
// matches or when the name is ambiguous.
func (c *Collection[T]) Get(idOrName string) (T, bool) {
	e, m := c.Lookup(idOrName)
	return e, m == Found
}

// Lookup resolves idOrName: exact key first, then each alias tier in order.
// Name comparison is exact and case sensitive. A tier matching more than one
// entity yields Ambiguous rather than the first hit.
func (c *Collection[T]) Lookup(idOrName string) (T, Match) {
	var zero T
	if idOrName == "" {
		return zero, NotFound
	}
	if e, ok := c.entries.Get(idOrName); ok {
		return e, Found
	}

	for tier := 0; ; tier++ {
		var (
			hit     T
			hits    int
			reached bool
		)
		for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
			aliases := pair.Value.Aliases()
			if tier >= len(aliases) {
				continue
			}
			reached = true
			for _, alias := range aliases[tier] {
				if alias != "" && alias == idOrName {
					hit = pair.Value
					hits++
					break
				}
			}
		}
		switch {
		case hits == 1:
			return hit, Found
		case hits > 1:
			return zero, Ambiguous
		case !reached:
			return zero, NotFound
		}
	}
}

// All yields the entities in insertion order. The sequence may be ranged
// over any number of times.
func (c *Collection[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Value) {
				return
			}
		}
	}
}

// Slice returns the entities in insertion order.
func (c *Collection[T]) Slice() []T {
	out := make([]T, 0, c.entries.Len())
	for e := range c.All() {
		out = append(out, e)
	}
	return out
}

// FilterBy returns the entities satisfying keep, in insertion order. The
// collection is not modified.
func (c *Collection[T]) FilterBy(keep func(T) bool) []T {
	var out []T
	for e := range c.All() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

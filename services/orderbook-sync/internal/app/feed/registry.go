package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/muhammadchandra19/exchange/pkg/errors"
)

// Registry owns the feeds of a process, one per product. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]*Feed
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]*Feed)}
}

// Register adds feed. A product can only be registered once.
func (r *Registry) Register(feed *Feed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.feeds[feed.ProductID()]; ok {
		return errors.NewTracer(errors.FeedAlreadyRegistered).Wrap(fmt.Errorf("product %s", feed.ProductID()))
	}
	r.feeds[feed.ProductID()] = feed
	return nil
}

// Get returns the feed of productID.
func (r *Registry) Get(productID string) (*Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	feed, ok := r.feeds[productID]
	return feed, ok
}

// Remove unregisters productID and returns its feed. The feed is not stopped.
func (r *Registry) Remove(productID string) (*Feed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	feed, ok := r.feeds[productID]
	delete(r.feeds, productID)
	return feed, ok
}

// Products lists the registered products in order.
func (r *Registry) Products() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]string, 0, len(r.feeds))
	for id := range r.feeds {
		products = append(products, id)
	}
	sort.Strings(products)
	return products
}

func (r *Registry) snapshot() []*Feed {
	products := r.Products()

	r.mu.RLock()
	defer r.mu.RUnlock()
	feeds := make([]*Feed, 0, len(products))
	for _, id := range products {
		if feed, ok := r.feeds[id]; ok {
			feeds = append(feeds, feed)
		}
	}
	return feeds
}

// StartAll starts every feed. On failure the feeds already started are stopped again.
func (r *Registry) StartAll(ctx context.Context) error {
	started := make([]*Feed, 0)
	for _, feed := range r.snapshot() {
		if err := feed.Start(ctx); err != nil {
			for _, s := range started {
				_ = s.Stop(ctx)
			}
			return fmt.Errorf("start feed %s: %w", feed.ProductID(), err)
		}
		started = append(started, feed)
	}
	return nil
}

// StopAll stops every feed and returns the first error.
func (r *Registry) StopAll(ctx context.Context) error {
	var first error
	for _, feed := range r.snapshot() {
		if err := feed.Stop(ctx); err != nil && first == nil {
			first = fmt.Errorf("stop feed %s: %w", feed.ProductID(), err)
		}
	}
	return first
}

// Ready returns nil when every feed is synced, otherwise an error naming the first one that is not.
func (r *Registry) Ready() error {
	for _, feed := range r.snapshot() {
		if status := feed.Status(); !status.State.Synced() {
			return errors.NewErrorDetailsWithObject(
				fmt.Sprintf("feed %s is %s at sequence %d", status.ProductID, status.State, status.Sequence),
				errors.FeedNotReady,
				status.ProductID,
				status,
			)
		}
	}
	return nil
}

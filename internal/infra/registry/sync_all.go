package registry

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SyncAll syncs every connected tool concurrently and returns the joined failures.
// One failing tool does not stop the others.
func (r *Registry) SyncAll(ctx context.Context) error {
	ids := r.store.ConnectedToolIDs()
	if len(ids) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var group errgroup.Group
	for _, id := range ids {
		group.Go(func() error {
			if err := r.Sync(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

// ConnectAll connects toolIDs (every catalog tool when empty) with at most limit
// handshakes in flight. Failures are joined; each tool still ends in connected or error.
func (r *Registry) ConnectAll(ctx context.Context, toolIDs []string, limit int) error {
	if len(toolIDs) == 0 {
		toolIDs = r.order
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, id := range toolIDs {
		group.Go(func() error {
			if err := r.Connect(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

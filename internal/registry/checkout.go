package registry

import (
	"context"
	"fmt"
)

// Checkout takes exclusive ownership of id. label names the calling
// operation in the returned error.
func Checkout[K comparable, V any](ctx context.Context, r *Registry[K, V], id K, label string) (Ticket[K, V], error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return Ticket[K, V]{}, fmt.Errorf("%s: %w", label, err)
	}
	return t, nil
}

// Release hands a checked-out value back to r.
func Release[K comparable, V any](ctx context.Context, r *Registry[K, V], ticket Ticket[K, V], label string) error {
	if err := r.Return(ctx, ticket); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	return nil
}

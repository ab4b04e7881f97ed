package stores

import (
	"context"
	"errors"
)

var ErrStoreNotFound = errors.New("store not found")

type Provider interface {
	// Resolve store from incoming host.
	ResolveStoreByHost(ctx context.Context, host string) (Store, error)
	ResolveStoreByID(ctx context.Context, id string) (Store, error)
	ListStores(ctx context.Context) ([]Store, error)
}

// Package metadata is the client's persistent key/value store. It survives
// restarts and holds the session keys.
package metadata

import (
	"context"
)

// Repository is a string key/value store. Get reports a missing key with
// ok == false and a nil error. SetMany and Delete apply all their keys
// atomically.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}

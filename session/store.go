// Package session keeps server-side login sessions addressed by a cookie.
package session

import (
	"context"
	"errors"

	"canteen-api/auth"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

type Store interface {
	Create(ctx context.Context, p auth.Principal) (string, error)
	Get(ctx context.Context, id string) (*auth.Principal, error)
	Delete(ctx context.Context, id string) error
}

func newID() string {
	return uuid.NewString()
}

package flows

import "context"

// RevokeStore removes refresh tokens.
type RevokeStore interface {
	DeleteRefresh(ctx context.Context, token string) error
	DeleteAllForIdentity(ctx context.Context, identity string) error
}

type RevokeDeps struct {
	Store RevokeStore
}

// RunRevoke deletes one refresh token. Unknown tokens are not an error.
func RunRevoke(ctx context.Context, token string, deps RevokeDeps) error {
	if token == "" {
		return nil
	}
	return deps.Store.DeleteRefresh(ctx, token)
}

// RunRevokeAll deletes every refresh token of identity.
func RunRevokeAll(ctx context.Context, identity string, deps RevokeDeps) error {
	if identity == "" {
		return nil
	}
	return deps.Store.DeleteAllForIdentity(ctx, identity)
}

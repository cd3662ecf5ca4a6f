// Package actorctx carries the authenticated caller on a request context so
// code below the HTTP layer can log who acted.
package actorctx

import (
	"context"

	"github.com/geocoder89/chathub/internal/access"
)

type ctxKey struct{}

func WithCaller(ctx context.Context, caller access.Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, caller)
}

func CallerFrom(ctx context.Context) (access.Caller, bool) {
	v, ok := ctx.Value(ctxKey{}).(access.Caller)

	return v, ok && v.Authenticated()
}

func UserIDFrom(ctx context.Context) (string, bool) {
	c, ok := CallerFrom(ctx)

	return c.UserID, ok
}

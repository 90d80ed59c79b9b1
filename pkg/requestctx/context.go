// Package requestctx carries the calling organization and user on the
// request context.
package requestctx

import "context"

type organizationKey struct{}

type userKey struct{}

// WithOrganization returns a context carrying organizationID. An empty id
// leaves ctx unchanged.
func WithOrganization(ctx context.Context, organizationID string) context.Context {
	if organizationID == "" {
		return ctx
	}

	return context.WithValue(ctx, organizationKey{}, organizationID)
}

// Organization returns the organization id from ctx, or "" if not set.
func Organization(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	s, _ := ctx.Value(organizationKey{}).(string)

	return s
}

func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}

	return context.WithValue(ctx, userKey{}, userID)
}

func User(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	s, _ := ctx.Value(userKey{}).(string)

	return s
}

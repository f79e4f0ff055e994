package tenant

import "context"

// contextKey is a context key type for storing the resolved tenant scope.
type contextKey struct{}

// WithContext stores the resolved tenant scope in ctx.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext retrieves the tenant scope stored by the middleware.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok && tc != nil
}

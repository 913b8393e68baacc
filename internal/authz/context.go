package authz

import "context"

// Context is the per-session authorization context. It is constructed once
// when the session is resolved and threaded explicitly; nothing in this
// package reads ambient state.
type Context struct {
	SubjectID int64
	Set       Set

	// Version is the subject's permissions version at resolve time. A
	// mismatch against the current version means the session must re-fetch
	// its authorization state.
	Version string
}

// NewContext resolves a subject into an authorization context.
func NewContext(subject *Subject, version string) *Context {
	ctx := &Context{Set: Resolve(subject), Version: version}
	if subject != nil {
		ctx.SubjectID = subject.ID
	}
	return ctx
}

type authzContextKey struct{}

// WithContext stores the authorization context in a request context.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, authzContextKey{}, ac)
}

// FromContext extracts the authorization context. A nil result means the
// request is unauthenticated and must be treated as granting nothing.
func FromContext(ctx context.Context) *Context {
	ac, _ := ctx.Value(authzContextKey{}).(*Context)
	return ac
}

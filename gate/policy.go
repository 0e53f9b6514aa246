package gate

import "context"

// Policy defines resource-level rules for one resource type, evaluated after
// the subject's profile already granted resource:action.
// U is the subject type (a user id, a principal struct, ...).
type Policy[U any] interface {
	// Can reports whether user may perform action on this particular resource.
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

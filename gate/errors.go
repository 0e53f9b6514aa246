package gate

import "errors"

// Sentinel errors returned by HybridGate.Authorize. ErrUnauthenticated means
// there is no subject at all; ErrForbidden means the subject exists but lacks
// the permission or fails the resource policy.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

package http

import (
	"context"
)

type contextKey string

const memberIDContextKey contextKey = "member_id"

// ContextWithMemberID returns a derived context carrying the authenticated
// member identifier.
func ContextWithMemberID(ctx context.Context, memberID string) context.Context {
	return context.WithValue(ctx, memberIDContextKey, memberID)
}

// MemberIDFromContext extracts the authenticated member identifier from
// context if available.
func MemberIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(memberIDContextKey).(string)
	return id, ok
}

package testutil

import (
	"net/http"

	"github.com/google/uuid"

	id "mastercom/pkg/domain"
	"mastercom/pkg/requestcontext"
)

// WithUser puts an authenticated user and role on the request context, the
// way the auth middleware does.
func WithUser(req *http.Request, userID id.UserID, role string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// AsMember authenticates req as a fresh member and returns the user id.
func AsMember(req *http.Request) (*http.Request, id.UserID) {
	userID := id.UserID(uuid.New())
	return WithUser(req, userID, requestcontext.RoleMember), userID
}

// AsReviewer authenticates req as a fresh reviewer and returns the user id.
func AsReviewer(req *http.Request) (*http.Request, id.UserID) {
	userID := id.UserID(uuid.New())
	return WithUser(req, userID, requestcontext.RoleReviewer), userID
}

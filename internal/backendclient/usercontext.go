package backendclient

// UserContext identifies the end user on whose behalf a downstream call
// is made. It is attached to every backend request as headers. A nil
// *UserContext means anonymous; calls are never aborted for it.
type UserContext struct {
	ID            string
	DisplayName   string
	Email         string
	Role          string
	Authenticated bool
}

const (
	headerUserID            = "X-User-ID"
	headerUserName          = "X-User-Name"
	headerUserEmail         = "X-User-Email"
	headerUserRole          = "X-User-Role"
	headerUserAuthenticated = "X-User-Authenticated"
	headerRequestID         = "X-Request-ID"
)

const anonymousMarker = "anonymous"

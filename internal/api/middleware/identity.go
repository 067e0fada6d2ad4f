package middleware

import (
	"net/http"
	"strconv"
)

// userIDHeader carries the subject resolved by the edge gateway. The API
// trusts it as-is; authentication itself happens upstream.
const userIDHeader = "X-User-ID"

// ResolveUserID returns the listener behind a request, or zero for anonymous
// traffic and unparseable header values.
func ResolveUserID(r *http.Request) uint32 {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return 0
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}

	return uint32(id)
}

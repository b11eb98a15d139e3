package ratelimit

import (
	"strconv"
	"strings"
)

// KeyForIdentity builds the backend key for a requester identity.
func KeyForIdentity(prefix string, identity int64) string {
	id := strconv.FormatInt(identity, 10)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "id:" + id
	}
	return prefix + ":id:" + id
}
